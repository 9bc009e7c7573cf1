package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ecosyste-ms/ecosystems-cli/internal/api"
	"github.com/ecosyste-ms/ecosystems-cli/internal/spec"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Subcommand names reserved in every API group. Operations with these IDs
// stay reachable through "call".
var reservedNames = map[string]struct{}{
	"operations": {},
	"call":       {},
	"help":       {},
	"completion": {},
}

// Persistent flag names an operation parameter must not shadow.
var persistentNames = map[string]struct{}{
	"config": {}, "verbose": {}, "domain": {}, "timeout": {}, "jq": {}, "compact": {}, "help": {},
}

func newAPICmd(apiName string, opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   apiName,
		Short: fmt.Sprintf("Operations of the %s API", apiName),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &api.InvalidOperationError{Operation: args[0], Suggestions: cmd.SuggestionsFor(args[0])}
			}
			return cmd.Help()
		},
	}

	s, err := spec.Load(context.Background(), apiName, opts.SpecOptions...)
	if err == nil {
		var table *spec.Table
		table, err = spec.BuildTable(s)
		if err == nil {
			if s.Title != "" {
				cmd.Short = s.Title
			}
			if s.Description != "" {
				cmd.Long = s.Description
			}
			cmd.AddCommand(newOperationsCmd(table), newCallCmd(apiName, s, opts))
			for _, op := range table.Operations() {
				if _, reserved := reservedNames[op.ID]; reserved {
					continue
				}
				cmd.AddCommand(newOperationCmd(apiName, s, op, opts))
			}
		}
	}
	if err != nil {
		loadErr := err
		cmd.Short = fmt.Sprintf("Operations of the %s API (unavailable)", apiName)
		cmd.RunE = func(cmd *cobra.Command, args []string) error { return loadErr }
	}
	return cmd
}

func newOperationsCmd(table *spec.Table) *cobra.Command {
	return &cobra.Command{
		Use:     "operations",
		Aliases: []string{"ops"},
		Short:   "List the operations of this API",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, op := range table.Operations() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", op.ID, strings.ToUpper(string(op.Method)), op.Path, op.Summary)
			}
			return w.Flush()
		},
	}
}

func newCallCmd(apiName string, s *spec.Spec, opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <operationId>",
		Short: "Call any operation by ID with explicit parameters",
		Example: strings.TrimSpace(`  ecosystems packages call getRegistryPackage --path registryName=npmjs.org --path packageName=left-pad
  ecosystems resolver call createJob --query package_name=rails --query registry=rubygems.org`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			pathParams, err := flags.GetStringToString("path")
			if err != nil {
				return err
			}
			queryParams, err := flags.GetStringToString("query")
			if err != nil {
				return err
			}
			headers, err := flags.GetStringToString("header")
			if err != nil {
				return err
			}
			req := api.Request{PathParams: pathParams, QueryParams: queryParams, Headers: headers}
			if flags.Changed("body") {
				raw, _ := flags.GetString("body")
				if req.Body, err = parseBody(raw); err != nil {
					return err
				}
			}
			return runOperation(cmd, apiName, s, args[0], req, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringToString("path", nil, "Path parameter as name=value (repeatable)")
	flags.StringToString("query", nil, "Query parameter as name=value (repeatable)")
	flags.StringToString("header", nil, "Header parameter as name=value (repeatable)")
	flags.String("body", "", "Request body as JSON")
	return cmd
}

// paramFlag binds one operation parameter to a command-line flag.
type paramFlag struct {
	param spec.Parameter
	flag  string
}

func newOperationCmd(apiName string, s *spec.Spec, op spec.Operation, opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   op.ID,
		Short: op.Summary,
		Long:  operationLong(op),
	}

	bound := bindParameterFlags(cmd.Flags(), op)
	for _, b := range bound {
		if b.param.Required {
			_ = cmd.MarkFlagRequired(b.flag)
		}
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		req := api.Request{
			PathParams:  map[string]string{},
			QueryParams: map[string]string{},
			Headers:     map[string]string{},
		}
		flags := cmd.Flags()
		for _, b := range bound {
			if !flags.Changed(b.flag) {
				continue
			}
			value, err := flags.GetString(b.flag)
			if err != nil {
				return err
			}
			switch b.param.In {
			case spec.InPath:
				req.PathParams[b.param.Name] = value
			case spec.InQuery:
				req.QueryParams[b.param.Name] = value
			case spec.InHeader:
				req.Headers[b.param.Name] = value
			case spec.InBody:
				body, err := parseBody(value)
				if err != nil {
					return err
				}
				req.Body = body
			}
		}
		return runOperation(cmd, apiName, s, op.ID, req, opts)
	}
	return cmd
}

// bindParameterFlags registers a string flag per parameter. Names that clash
// with persistent flags or with each other get the location as a prefix.
func bindParameterFlags(flags *pflag.FlagSet, op spec.Operation) []paramFlag {
	var bound []paramFlag
	for _, p := range op.Parameters {
		name := p.Name
		if _, clash := persistentNames[name]; clash || flags.Lookup(name) != nil {
			name = string(p.In) + "-" + p.Name
		}
		if flags.Lookup(name) != nil {
			continue
		}
		usage := p.Description
		if usage == "" {
			usage = fmt.Sprintf("%s parameter", p.In)
		}
		if p.Type != "" {
			usage = fmt.Sprintf("%s (%s)", usage, p.Type)
		}
		if p.In == spec.InBody {
			usage = "Request body as JSON"
		}
		flags.String(name, "", usage)
		bound = append(bound, paramFlag{param: p, flag: name})
	}
	return bound
}

func operationLong(op spec.Operation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", strings.ToUpper(string(op.Method)), op.Path)
	if op.Summary != "" {
		fmt.Fprintf(&b, "\n\n%s", op.Summary)
	}
	if op.Description != "" && op.Description != op.Summary {
		fmt.Fprintf(&b, "\n\n%s", op.Description)
	}
	return b.String()
}

func parseBody(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var body any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, newUsageErrorf("--body is not valid JSON: %v", err)
	}
	return body, nil
}

// runOperation builds a client for this invocation, dispatches the call,
// post-processes the result with the API's handler and prints it.
func runOperation(cmd *cobra.Command, apiName string, s *spec.Spec, operationID string, req api.Request, opts Options) error {
	cfg, err := runConfigFrom(cmd)
	if err != nil {
		return err
	}
	clientOpts := append([]api.Option{api.WithTimeout(cfg.Timeout)}, opts.ClientOptions...)
	client, err := api.NewFromSpec(s, clientOpts...)
	if err != nil {
		return err
	}
	req.Domain = cfg.Domain

	result, err := client.Call(cmd.Context(), operationID, req)
	if err != nil {
		return err
	}
	result, err = opts.Registry.Get(apiName).PostProcess(operationID, result)
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), result, cfg.JQ, cfg.Compact)
}
