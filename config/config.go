// Package config loads and validates the application configuration. The
// pipeline document is configured by path here but parsed and validated by
// the pipeline package; this file covers process-level concerns only.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TomDLT/realtimefmri/errors"
)

// Config is the complete application configuration.
type Config struct {
	NATS      NATSConfig      `yaml:"nats"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Recording RecordingConfig `yaml:"recording"`
	Display   DisplayConfig   `yaml:"display"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Pipeline  string          `yaml:"pipeline"` // path to the pipeline document
}

// NATSConfig configures the messaging connection.
type NATSConfig struct {
	URL string `yaml:"url"`
	// Name identifies the connection on the server side.
	Name string `yaml:"name"`
}

// IngestConfig selects and configures the volume source.
type IngestConfig struct {
	// Source is "directory" or "nats".
	Source string `yaml:"source"`
	// Directory is the spool directory for the directory source.
	Directory string `yaml:"directory"`
	// Pattern filters spool file names (default *.nii).
	Pattern string `yaml:"pattern"`
	// Subject carries volume paths for the nats source.
	Subject string `yaml:"subject"`
}

// RecordingConfig controls persisted run output.
type RecordingConfig struct {
	// Directory is the root the record step writes under.
	Directory string `yaml:"directory"`
	// Bucket is the JetStream KV bucket for run registration.
	Bucket string `yaml:"bucket"`
}

// DisplayConfig configures the output sinks.
type DisplayConfig struct {
	// SubjectPrefix prefixes per-channel display subjects.
	SubjectPrefix string `yaml:"subject_prefix"`
	// WebSocketPort serves the viewer broadcast, 0 disables it.
	WebSocketPort int `yaml:"websocket_port"`
	// QueueSize bounds the publication queue.
	QueueSize int `yaml:"queue_size"`
}

// MetricsConfig configures the observability endpoint.
type MetricsConfig struct {
	// Port serves /metrics and /health, 0 disables the server.
	Port int `yaml:"port"`
}

// Source kinds for IngestConfig.
const (
	SourceDirectory = "directory"
	SourceNATS      = "nats"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		NATS:      NATSConfig{URL: "nats://127.0.0.1:4222", Name: "realtimefmri"},
		Ingest:    IngestConfig{Source: SourceDirectory, Pattern: "*.nii"},
		Recording: RecordingConfig{Directory: "recordings", Bucket: "fmri_runs"},
		Display:   DisplayConfig{SubjectPrefix: "display", QueueSize: 64},
		Metrics:   MetricsConfig{Port: 9090},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfig(err, "config", "Load", "read "+path)
	}

	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.WrapConfig(err, "config", "Load", "decode "+path)
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments point at their own NATS
// without editing the config file.
func applyEnvOverrides(cfg *Config) {
	if url := os.Getenv("REALTIMEFMRI_NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return validationError("nats.url is required")
	}
	if c.Pipeline == "" {
		return validationError("pipeline path is required")
	}

	switch c.Ingest.Source {
	case SourceDirectory:
		if c.Ingest.Directory == "" {
			return validationError("ingest.directory is required for the directory source")
		}
	case SourceNATS:
		if c.Ingest.Subject == "" {
			return validationError("ingest.subject is required for the nats source")
		}
	default:
		return validationError(fmt.Sprintf("unknown ingest source %q", c.Ingest.Source))
	}

	if c.Recording.Directory == "" {
		return validationError("recording.directory is required")
	}
	if c.Recording.Bucket == "" {
		return validationError("recording.bucket is required")
	}
	if c.Display.QueueSize < 0 {
		return validationError("display.queue_size must not be negative")
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return validationError(fmt.Sprintf("invalid metrics port %d", c.Metrics.Port))
	}
	if c.Display.WebSocketPort < 0 || c.Display.WebSocketPort > 65535 {
		return validationError(fmt.Sprintf("invalid websocket port %d", c.Display.WebSocketPort))
	}
	return nil
}

func validationError(msg string) error {
	return errors.WrapConfig(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg),
		"config", "Validate", "consistency check")
}
