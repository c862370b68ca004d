package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jimmy24599/kairo-sub000/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Kairo configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/kairo/config.yaml
Project-specific overrides can be placed in .kairo.yaml
API keys are read from the environment and never written.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			displayAllConfig(out, cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(out, "Set %s = %s in %s\n", args[0], args[1], config.GetUserConfigPath())
			return nil
		}
	},
}

// configKeys lists the keys shown by 'kairo config', in display order.
var configKeys = []string{
	"planner.provider",
	"planner.model",
	"planner.api_key",
	"planner.max_tokens",
	"planner.aws_region",
	"planner.gcp_project",
	"executor.max_attempts",
	"executor.initial_backoff",
	"executor.max_backoff",
	"decompose.max_subtasks",
	"decompose.oracle_timeout",
	"decompose.fallback_operation",
	"store.driver",
	"store.path",
	"progress.buffer_size",
	"progress.observer_timeout",
	"workspace.root",
	"log.level",
	"tracing.enabled",
	"tracing.provider",
	"tracing.endpoint",
	"tracing.sample_rate",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(out io.Writer, c *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(c, key)
		fmt.Fprintf(out, "%s: %s\n", key, value)
	}
}

// getConfigValue returns the display value of key. The API key is masked.
func getConfigValue(c *config.Config, key string) (string, error) {
	switch key {
	case "planner.provider":
		return c.Planner.Provider, nil
	case "planner.model":
		return c.Planner.Model, nil
	case "planner.api_key":
		apiKey, _ := config.GetAPIKey(c)
		return fmt.Sprintf("%s (%s)", config.MaskAPIKey(apiKey), config.GetAPIKeySource(c)), nil
	case "planner.max_tokens":
		return strconv.Itoa(c.Planner.MaxTokens), nil
	case "planner.aws_region":
		return c.Planner.AWSRegion, nil
	case "planner.gcp_project":
		return c.Planner.GCPProject, nil
	case "executor.max_attempts":
		return strconv.Itoa(c.Executor.MaxAttempts), nil
	case "executor.initial_backoff":
		return c.Executor.InitialBackoff.String(), nil
	case "executor.max_backoff":
		return c.Executor.MaxBackoff.String(), nil
	case "decompose.max_subtasks":
		return strconv.Itoa(c.Decompose.MaxSubtasks), nil
	case "decompose.oracle_timeout":
		return c.Decompose.OracleTimeout.String(), nil
	case "decompose.fallback_operation":
		return c.Decompose.FallbackOperation, nil
	case "store.driver":
		return c.Store.Driver, nil
	case "store.path":
		return c.Store.Path, nil
	case "progress.buffer_size":
		return strconv.Itoa(c.Progress.BufferSize), nil
	case "progress.observer_timeout":
		return c.Progress.ObserverTimeout.String(), nil
	case "workspace.root":
		return c.Workspace.Root, nil
	case "log.level":
		return c.Log.Level, nil
	case "tracing.enabled":
		return strconv.FormatBool(c.Tracing.Enabled), nil
	case "tracing.provider":
		return c.Tracing.Provider, nil
	case "tracing.endpoint":
		return c.Tracing.Endpoint, nil
	case "tracing.sample_rate":
		return strconv.FormatFloat(c.Tracing.SampleRate, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// setConfigValue parses value and stores it under key.
func setConfigValue(c *config.Config, key, value string) error {
	var err error
	switch key {
	case "planner.provider":
		c.Planner.Provider = value
	case "planner.model":
		c.Planner.Model = value
	case "planner.api_key":
		return fmt.Errorf("planner.api_key is not stored; set ANTHROPIC_API_KEY or GEMINI_API_KEY instead")
	case "planner.max_tokens":
		c.Planner.MaxTokens, err = strconv.Atoi(value)
	case "planner.aws_region":
		c.Planner.AWSRegion = value
	case "planner.gcp_project":
		c.Planner.GCPProject = value
	case "executor.max_attempts":
		c.Executor.MaxAttempts, err = strconv.Atoi(value)
	case "executor.initial_backoff":
		c.Executor.InitialBackoff, err = time.ParseDuration(value)
	case "executor.max_backoff":
		c.Executor.MaxBackoff, err = time.ParseDuration(value)
	case "decompose.max_subtasks":
		c.Decompose.MaxSubtasks, err = strconv.Atoi(value)
	case "decompose.oracle_timeout":
		c.Decompose.OracleTimeout, err = time.ParseDuration(value)
	case "decompose.fallback_operation":
		c.Decompose.FallbackOperation = value
	case "store.driver":
		c.Store.Driver = value
	case "store.path":
		c.Store.Path = value
	case "progress.buffer_size":
		c.Progress.BufferSize, err = strconv.Atoi(value)
	case "progress.observer_timeout":
		c.Progress.ObserverTimeout, err = time.ParseDuration(value)
	case "workspace.root":
		c.Workspace.Root = value
	case "log.level":
		c.Log.Level = value
	case "tracing.enabled":
		c.Tracing.Enabled, err = strconv.ParseBool(value)
	case "tracing.provider":
		c.Tracing.Provider = value
	case "tracing.endpoint":
		c.Tracing.Endpoint = value
	case "tracing.sample_rate":
		c.Tracing.SampleRate, err = strconv.ParseFloat(value, 64)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}
