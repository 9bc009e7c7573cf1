package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/itchyny/gojq"
)

// writeResult prints result as JSON, optionally filtered through a jq
// expression. A plain string result (a non-JSON body) is printed verbatim.
func writeResult(w io.Writer, result any, query string, compact bool) error {
	if query != "" {
		filtered, err := applyQuery(result, query)
		if err != nil {
			return err
		}
		result = filtered
	}
	if s, ok := result.(string); ok {
		_, err := fmt.Fprintln(w, strings.TrimRight(s, "\n"))
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

// applyQuery runs a jq expression. A single result is returned as is,
// several results are collected into a slice.
func applyQuery(data any, expression string) (any, error) {
	// Zsh escapes ! even inside single quotes.
	expression = strings.ReplaceAll(expression, `\!`, `!`)
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, newUsageErrorf("invalid --jq expression: %v", err)
	}

	var results []any
	iter := query.Run(data)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			if haltErr, ok := err.(*gojq.HaltError); ok && haltErr.Value() == nil {
				break
			}
			return nil, fmt.Errorf("jq: %w", err)
		}
		results = append(results, v)
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}
