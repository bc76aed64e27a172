package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	PipelinePath    string
	RecordingID     string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("REALTIMEFMRI_CONFIG", "configs/realtimefmri.yaml"),
		"Path to configuration file (env: REALTIMEFMRI_CONFIG)")

	flag.StringVar(&cfg.PipelinePath, "pipeline",
		getEnv("REALTIMEFMRI_PIPELINE", ""),
		"Pipeline document path, overrides the config file (env: REALTIMEFMRI_PIPELINE)")

	flag.StringVar(&cfg.RecordingID, "recording-id",
		getEnv("REALTIMEFMRI_RECORDING_ID", ""),
		"Recording identifier for this run, generated when empty (env: REALTIMEFMRI_RECORDING_ID)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("REALTIMEFMRI_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: REALTIMEFMRI_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("REALTIMEFMRI_LOG_FORMAT", "json"),
		"Log format: json, text (env: REALTIMEFMRI_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("REALTIMEFMRI_SHUTDOWN_TIMEOUT", 15*time.Second),
		"Graceful shutdown timeout (env: REALTIMEFMRI_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and pipeline, then exit")

	flag.Usage = printDetailedHelp
	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Real-time fMRI preprocessing

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with custom config and pipeline
  %s --config=/etc/realtimefmri/config.yaml --pipeline=/etc/realtimefmri/pipeline.yaml

  # Run with a named recording
  %s --recording-id=sub-01-run-02

  # Validate configuration and pipeline without starting a run
  %s --validate

Version: %s
`, os.Args[0], os.Args[0], os.Args[0], Version)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
