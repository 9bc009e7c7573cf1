package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ecosyste-ms/ecosystems-cli/internal/api"
	"github.com/ecosyste-ms/ecosystems-cli/internal/debug"
	"github.com/ecosyste-ms/ecosystems-cli/internal/handler"
	"github.com/ecosyste-ms/ecosystems-cli/internal/spec"
	"github.com/spf13/cobra"
)

// EnvSpecDir points at a directory of API descriptions searched before the bundled ones.
const EnvSpecDir = "ECOSYSTEMS_SPEC_DIR"

// Options wires the command tree to its collaborators. Tests replace the
// spec sources, the environment and the HTTP transport through it.
type Options struct {
	SpecOptions   []spec.Option
	ClientOptions []api.Option
	Registry      *handler.Registry
}

// DefaultOptions reads ECOSYSTEMS_SPEC_DIR and registers the built-in handlers.
func DefaultOptions() Options {
	var specOpts []spec.Option
	if dir := strings.TrimSpace(os.Getenv(EnvSpecDir)); dir != "" {
		specOpts = append(specOpts, spec.WithSpecDir(dir))
	}
	return Options{
		SpecOptions: specOpts,
		Registry:    handler.NewRegistry(),
	}
}

// Execute runs the ecosystems CLI with args.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWith(DefaultOptions())
}

// NewRootCmdWith builds the command tree with one subcommand group per available API.
func NewRootCmdWith(opts Options) *cobra.Command {
	if opts.Registry == nil {
		opts.Registry = handler.NewRegistry()
	}

	cmd := &cobra.Command{
		Use:           "ecosystems",
		Short:         "Query ecosyste.ms APIs from the command line",
		Long:          "ecosystems exposes every operation of the bundled ecosyste.ms OpenAPI descriptions as a subcommand.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveRunConfig(cmd)
			if err != nil {
				return err
			}
			debug.SetupLoggerTo(cmd.ErrOrStderr(), cfg.Verbose)
			ctx := debug.WithDebug(cmd.Context(), cfg.Verbose)
			cmd.SetContext(withRunConfig(ctx, cfg))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	cmd.SetFlagErrorFunc(flagErrorFunc)

	pf := cmd.PersistentFlags()
	pf.StringP("config", "c", "", "Config file path (YAML or JSON)")
	pf.BoolP("verbose", "v", false, "Enable verbose logging output")
	pf.String("domain", "", "API domain or base URL (ECOSYSTEMS_<API>_DOMAIN and ECOSYSTEMS_DOMAIN take precedence)")
	pf.Duration("timeout", api.DefaultTimeout, "HTTP request timeout")
	pf.String("jq", "", "jq expression applied to the result before printing")
	pf.Bool("compact", false, "Print JSON on a single line")

	cmd.AddCommand(newAPIsCmd(opts), newInitCmd(), newVersionCmd())
	for _, name := range spec.Available(opts.SpecOptions...) {
		cmd.AddCommand(newAPICmd(name, opts))
	}

	for _, c := range cmd.Commands() {
		c.SetFlagErrorFunc(flagErrorFunc)
	}
	return cmd
}

func flagErrorFunc(c *cobra.Command, err error) error {
	return newUsageErrorf("%v\n\n%s", err, c.UsageString())
}

func newAPIsCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "apis",
		Short: "List the available APIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range spec.Available(opts.SpecOptions...) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
