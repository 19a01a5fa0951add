// Package config handles configuration loading and management for foragen.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/foragen/foragen-cli/internal/orchestrator/policy"
)

// ProjectConfigName is the project-level config file name.
const ProjectConfigName = ".foragen.yaml"

// Config holds all configuration for foragen.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Workflows WorkflowsConfig `mapstructure:"workflows"`
	History   HistoryConfig   `mapstructure:"history"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AnthropicConfig holds settings for the agent executor.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Model is used when an agent does not name one.
	Model string `mapstructure:"model"`
	// Bedrock routes requests through AWS Bedrock instead of the API.
	Bedrock    bool   `mapstructure:"bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// WorkflowsConfig holds workflow store and scheduling settings.
type WorkflowsConfig struct {
	// CacheTTL is how long a directory scan is reused.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// BuiltinDir replaces the embedded builtin workflows.
	BuiltinDir string `mapstructure:"builtin_dir"`
	// MaxParallel caps concurrent steps per level. Zero means no cap.
	MaxParallel int `mapstructure:"max_parallel"`
	// RetryBackoff is the base wait between step attempts.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	// Watch invalidates the cache on file changes during long runs.
	Watch bool `mapstructure:"watch"`
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// DebugFile writes a debug log under .foragen/logs.
	DebugFile bool `mapstructure:"debug_file"`
}

// Policy converts the scheduling settings to an orchestrator policy.
func (c *Config) Policy() *policy.Config {
	p := policy.Default()
	p.Scheduling.MaxParallel = c.Workflows.MaxParallel
	p.Retry.Backoff = c.Workflows.RetryBackoff
	return p
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (FORAGEN_*, ANTHROPIC_API_KEY)
// 2. Project config (.foragen.yaml in current directory or parent)
// 3. User config (~/.config/foragen/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	return LoadFrom(UserConfigDir(), findProjectConfig())
}

// LoadFrom loads configuration with an explicit user config directory and
// project config file. An empty projectConfig skips the project level.
func LoadFrom(userConfigDir, projectConfig string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	v.SetEnvPrefix("FORAGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "FORAGEN_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.History.Path = expandEnv(cfg.History.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUserFile loads only the user config file over defaults, without
// project overrides or environment variables. It is the base for edits
// that are saved back with Save.
func LoadUserFile(userConfigDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the rest of foragen cannot use.
func (c *Config) Validate() error {
	if c.Workflows.MaxParallel < 0 {
		return fmt.Errorf("workflows.max_parallel must not be negative")
	}
	if c.Workflows.CacheTTL < 0 || c.Workflows.RetryBackoff < 0 {
		return fmt.Errorf("workflows durations must not be negative")
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	return SaveTo(UserConfigDir(), cfg)
}

// SaveTo writes the configuration to config.yaml in dir.
func SaveTo(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.bedrock", cfg.Anthropic.Bedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("workflows.cache_ttl", cfg.Workflows.CacheTTL.String())
	v.Set("workflows.builtin_dir", cfg.Workflows.BuiltinDir)
	v.Set("workflows.max_parallel", cfg.Workflows.MaxParallel)
	v.Set("workflows.retry_backoff", cfg.Workflows.RetryBackoff.String())
	v.Set("workflows.watch", cfg.Workflows.Watch)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("history.path", cfg.History.Path)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.debug_file", cfg.Logging.DebugFile)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(UserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// ProjectRoot returns the directory holding the nearest .foragen.yaml or
// .foragen directory, falling back to the current directory.
func ProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}

	for dir := cwd; ; {
		if _, err := os.Stat(filepath.Join(dir, ProjectConfigName)); err == nil {
			return dir
		}
		if info, err := os.Stat(filepath.Join(dir, ".foragen")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("workflows.cache_ttl", "60s")
	v.SetDefault("workflows.builtin_dir", "")
	v.SetDefault("workflows.max_parallel", 0)
	v.SetDefault("workflows.retry_backoff", "2s")
	v.SetDefault("workflows.watch", false)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.debug_file", false)
}

// UserConfigDir returns the XDG config directory for foragen.
func UserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "foragen")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "foragen")
	}
	return filepath.Join(home, ".config", "foragen")
}

// findProjectConfig searches for .foragen.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Workflows: WorkflowsConfig{
			CacheTTL:     60 * time.Second,
			RetryBackoff: 2 * time.Second,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
