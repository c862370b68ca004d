// Package config handles configuration loading and management for Kairo.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Kairo.
type Config struct {
	Planner   PlannerConfig   `mapstructure:"planner"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Decompose DecomposeConfig `mapstructure:"decompose"`
	Store     StoreConfig     `mapstructure:"store"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// PlannerConfig selects the planner oracle backend.
type PlannerConfig struct {
	// Provider is one of anthropic, bedrock or gemini.
	Provider string `mapstructure:"provider"`
	// Model is the backend model name. Empty picks the provider default.
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
	// AWSRegion and AWSProfile are used by the bedrock provider.
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	// GCPProject and GCPLocation switch the gemini provider to Vertex AI.
	GCPProject  string `mapstructure:"gcp_project"`
	GCPLocation string `mapstructure:"gcp_location"`
	MaxTokens   int    `mapstructure:"max_tokens"`
}

// ExecutorConfig holds retry settings for subtask execution.
type ExecutorConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// DecomposeConfig holds task planning settings.
type DecomposeConfig struct {
	MaxSubtasks       int           `mapstructure:"max_subtasks"`
	OracleTimeout     time.Duration `mapstructure:"oracle_timeout"`
	FallbackOperation string        `mapstructure:"fallback_operation"`
}

// StoreConfig selects the SQLite driver and database file.
type StoreConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `mapstructure:"driver"`
	// Path overrides the project database location.
	Path string `mapstructure:"path"`
}

// ProgressConfig holds observer delivery settings.
type ProgressConfig struct {
	BufferSize      int           `mapstructure:"buffer_size"`
	ObserverTimeout time.Duration `mapstructure:"observer_timeout"`
}

// WorkspaceConfig holds the project root operations run against.
type WorkspaceConfig struct {
	Root string `mapstructure:"root"`
	// Protected adds glob patterns or file extensions the built-in tools
	// may not write, on top of the defaults.
	Protected []string `mapstructure:"protected"`
}

// LogConfig holds run log settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TracingConfig holds span export settings.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Provider is "log" (spans go to the run log) or "otlp".
	Provider   string  `mapstructure:"provider"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
	Insecure   bool    `mapstructure:"insecure"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (KAIRO_*, ANTHROPIC_API_KEY, GEMINI_API_KEY)
// 2. Project config (.kairo.yaml in current directory or parent)
// 3. User config (~/.config/kairo/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return decode(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

// Save writes the configuration to the user config file. API keys are not
// written; they belong in the environment.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("planner.provider", cfg.Planner.Provider)
	v.Set("planner.model", cfg.Planner.Model)
	v.Set("planner.aws_region", cfg.Planner.AWSRegion)
	v.Set("planner.aws_profile", cfg.Planner.AWSProfile)
	v.Set("planner.gcp_project", cfg.Planner.GCPProject)
	v.Set("planner.gcp_location", cfg.Planner.GCPLocation)
	v.Set("planner.max_tokens", cfg.Planner.MaxTokens)
	v.Set("executor.max_attempts", cfg.Executor.MaxAttempts)
	v.Set("executor.initial_backoff", cfg.Executor.InitialBackoff.String())
	v.Set("executor.max_backoff", cfg.Executor.MaxBackoff.String())
	v.Set("decompose.max_subtasks", cfg.Decompose.MaxSubtasks)
	v.Set("decompose.oracle_timeout", cfg.Decompose.OracleTimeout.String())
	v.Set("decompose.fallback_operation", cfg.Decompose.FallbackOperation)
	v.Set("store.driver", cfg.Store.Driver)
	v.Set("store.path", cfg.Store.Path)
	v.Set("progress.buffer_size", cfg.Progress.BufferSize)
	v.Set("progress.observer_timeout", cfg.Progress.ObserverTimeout.String())
	v.Set("workspace.root", cfg.Workspace.Root)
	v.Set("workspace.protected", cfg.Workspace.Protected)
	v.Set("log.level", cfg.Log.Level)
	v.Set("tracing.enabled", cfg.Tracing.Enabled)
	v.Set("tracing.provider", cfg.Tracing.Provider)
	v.Set("tracing.endpoint", cfg.Tracing.Endpoint)
	v.Set("tracing.sample_rate", cfg.Tracing.SampleRate)
	v.Set("tracing.insecure", cfg.Tracing.Insecure)

	return v.WriteConfig()
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Planner.Provider {
	case "anthropic", "bedrock", "gemini":
	default:
		return fmt.Errorf("planner.provider: unknown provider %q", c.Planner.Provider)
	}
	switch c.Store.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("store.driver: unsupported driver %q", c.Store.Driver)
	}
	if c.Executor.MaxAttempts < 1 {
		return fmt.Errorf("executor.max_attempts must be at least 1, got %d", c.Executor.MaxAttempts)
	}
	if c.Decompose.MaxSubtasks < 1 {
		return fmt.Errorf("decompose.max_subtasks must be at least 1, got %d", c.Decompose.MaxSubtasks)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Provider {
		case "log", "otlp", "noop":
		default:
			return fmt.Errorf("tracing.provider: unsupported provider %q", c.Tracing.Provider)
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate)
		}
	}
	return nil
}

// ParseLevel converts a log level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("planner.provider", "anthropic")
	v.SetDefault("planner.model", "")
	v.SetDefault("planner.api_key", "")
	v.SetDefault("planner.aws_region", "")
	v.SetDefault("planner.aws_profile", "")
	v.SetDefault("planner.gcp_project", "")
	v.SetDefault("planner.gcp_location", "")
	v.SetDefault("planner.max_tokens", 8192)

	v.SetDefault("executor.max_attempts", 3)
	v.SetDefault("executor.initial_backoff", "500ms")
	v.SetDefault("executor.max_backoff", "10s")

	v.SetDefault("decompose.max_subtasks", 3)
	v.SetDefault("decompose.oracle_timeout", "60s")
	v.SetDefault("decompose.fallback_operation", "read_file")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "")

	v.SetDefault("progress.buffer_size", 100)
	v.SetDefault("progress.observer_timeout", "2s")

	v.SetDefault("workspace.root", ".")

	v.SetDefault("log.level", "info")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.provider", "log")
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.insecure", false)
}

// bindEnv maps KAIRO_SECTION_KEY variables onto every key.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("KAIRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Planner.APIKey = expandEnv(cfg.Planner.APIKey)
	return cfg, nil
}

// getUserConfigDir returns the XDG config directory for Kairo.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "kairo")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "kairo")
	}
	return filepath.Join(home, ".config", "kairo")
}

// findProjectConfig searches for .kairo.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".kairo.yaml")
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

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Planner: PlannerConfig{
			Provider:  "anthropic",
			MaxTokens: 8192,
		},
		Executor: ExecutorConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
		},
		Decompose: DecomposeConfig{
			MaxSubtasks:       3,
			OracleTimeout:     60 * time.Second,
			FallbackOperation: "read_file",
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Progress: ProgressConfig{
			BufferSize:      100,
			ObserverTimeout: 2 * time.Second,
		},
		Workspace: WorkspaceConfig{
			Root: ".",
		},
		Log: LogConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Provider:   "log",
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
	}
}
