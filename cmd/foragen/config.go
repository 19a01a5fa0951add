package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/foragen/foragen-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify foragen configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/foragen/config.yaml
Project-specific overrides can be placed in .foragen.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			displayAllConfig(out, appConfig)
			return nil
		case 1:
			value, err := getConfigValue(appConfig, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		default:
			// Only the user file is written, so start from it rather than
			// the merged view.
			userCfg, err := config.LoadUserFile(config.UserConfigDir())
			if err != nil {
				return err
			}
			if err := setConfigValue(userCfg, args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(userCfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintf(out, "Set %s = %s\n", args[0], args[1])
			return nil
		}
	},
}

// configKeys lists the displayable keys in order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"workflows.cache_ttl",
	"workflows.builtin_dir",
	"workflows.max_parallel",
	"workflows.retry_backoff",
	"workflows.watch",
	"history.enabled",
	"history.path",
	"logging.level",
	"logging.debug_file",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
	fmt.Fprintf(w, "credentials: %s\n", config.ResolveCredentials(cfg))
	if path := config.GetProjectConfigPath(); path != "" {
		fmt.Fprintf(w, "project config: %s\n", path)
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.RedactAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.bedrock":
		return strconv.FormatBool(cfg.Anthropic.Bedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "workflows.cache_ttl":
		return cfg.Workflows.CacheTTL.String(), nil
	case "workflows.builtin_dir":
		return cfg.Workflows.BuiltinDir, nil
	case "workflows.max_parallel":
		return strconv.Itoa(cfg.Workflows.MaxParallel), nil
	case "workflows.retry_backoff":
		return cfg.Workflows.RetryBackoff.String(), nil
	case "workflows.watch":
		return strconv.FormatBool(cfg.Workflows.Watch), nil
	case "history.enabled":
		return strconv.FormatBool(cfg.History.Enabled), nil
	case "history.path":
		return cfg.History.Path, nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.debug_file":
		return strconv.FormatBool(cfg.Logging.DebugFile), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.CheckAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for anthropic.bedrock: %w", err)
		}
		cfg.Anthropic.Bedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "workflows.cache_ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for workflows.cache_ttl: %w", err)
		}
		cfg.Workflows.CacheTTL = d
	case "workflows.builtin_dir":
		cfg.Workflows.BuiltinDir = value
	case "workflows.max_parallel":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for workflows.max_parallel: %w", err)
		}
		cfg.Workflows.MaxParallel = n
	case "workflows.retry_backoff":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for workflows.retry_backoff: %w", err)
		}
		cfg.Workflows.RetryBackoff = d
	case "workflows.watch":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for workflows.watch: %w", err)
		}
		cfg.Workflows.Watch = b
	case "history.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for history.enabled: %w", err)
		}
		cfg.History.Enabled = b
	case "history.path":
		cfg.History.Path = value
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.debug_file":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for logging.debug_file: %w", err)
		}
		cfg.Logging.DebugFile = b
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return cfg.Validate()
}
