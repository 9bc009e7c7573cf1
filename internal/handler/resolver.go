package handler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrJobFailed is returned when a resolver job reports an error status.
var ErrJobFailed = errors.New("resolver job failed")

// Resolver unwraps dependency resolution jobs. A completed job yields its
// results, a failed job yields an error, anything else passes through.
type Resolver struct{}

func (Resolver) PostProcess(_ string, result any) (any, error) {
	job, ok := result.(map[string]any)
	if !ok {
		return result, nil
	}
	status, _ := job["status"].(string)
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "complete":
		if results, ok := job["results"]; ok && results != nil {
			return results, nil
		}
		return job, nil
	case "error":
		msg := "unknown error"
		if v, ok := job["results"].(map[string]any); ok {
			if s, ok := v["error"].(string); ok && s != "" {
				msg = s
			}
		}
		if s, ok := job["error"].(string); ok && s != "" {
			msg = s
		}
		return nil, fmt.Errorf("%w: %s", ErrJobFailed, msg)
	}
	return result, nil
}
