package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ecosyste-ms/ecosystems-cli/internal/api"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// RunConfig captures all inputs that influence a call after merging
// defaults, config file values, and CLI overrides.
type RunConfig struct {
	Domain     string
	Timeout    time.Duration
	JQ         string
	Compact    bool
	Verbose    bool
	ConfigPath string
}

func defaultRunConfig() RunConfig {
	return RunConfig{Timeout: api.DefaultTimeout}
}

type runConfigKey struct{}

func withRunConfig(ctx context.Context, cfg *RunConfig) context.Context {
	return context.WithValue(ctx, runConfigKey{}, cfg)
}

// runConfigFrom returns the config stored by the root pre-run hook, resolving
// it again when a command runs without the hook (e.g. in isolation).
func runConfigFrom(cmd *cobra.Command) (*RunConfig, error) {
	if cmd.Context() != nil {
		if cfg, ok := cmd.Context().Value(runConfigKey{}).(*RunConfig); ok {
			return cfg, nil
		}
	}
	return resolveRunConfig(cmd)
}

func resolveRunConfig(cmd *cobra.Command) (*RunConfig, error) {
	cfg := defaultRunConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyRunConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyRunFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyRunFlagOverrides(flags *pflag.FlagSet, cfg *RunConfig) error {
	if flags.Changed("domain") {
		value, err := flags.GetString("domain")
		if err != nil {
			return err
		}
		cfg.Domain = value
	}
	if flags.Changed("timeout") {
		value, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = value
	}
	if flags.Changed("jq") {
		value, err := flags.GetString("jq")
		if err != nil {
			return err
		}
		cfg.JQ = value
	}
	if flags.Changed("compact") {
		value, err := flags.GetBool("compact")
		if err != nil {
			return err
		}
		cfg.Compact = value
	}
	if flags.Changed("verbose") {
		value, err := flags.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = value
	}
	return nil
}

func (c *RunConfig) normalize() {
	c.Domain = strings.TrimSpace(c.Domain)
	c.JQ = strings.TrimSpace(c.JQ)
}

func (c *RunConfig) validate() error {
	if c.Timeout <= 0 {
		return newUsageErrorf("--timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

func applyRunConfigFromFile(cfg *RunConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageErrorf("read config file %q: %v", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageErrorf("parse config file %q: %v", path, err)
	}

	for key, value := range raw {
		switch normalizeKey(key) {
		case "domain":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageErrorf("config field %q: %v", key, err)
			}
			cfg.Domain = str
		case "timeout":
			d, err := valueAsDuration(value)
			if err != nil {
				return newUsageErrorf("config field %q: %v", key, err)
			}
			cfg.Timeout = d
		case "jq":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageErrorf("config field %q: %v", key, err)
			}
			cfg.JQ = str
		case "compact":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageErrorf("config field %q: %v", key, err)
			}
			cfg.Compact = val
		case "verbose":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageErrorf("config field %q: %v", key, err)
			}
			cfg.Verbose = val
		default:
			return newUsageErrorf("config file %q: unknown field %q", path, key)
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

// valueAsDuration accepts Go duration strings ("30s") or a number of seconds.
func valueAsDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case int:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", val)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("expected duration, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}
