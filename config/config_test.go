package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomDLT/realtimefmri/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
pipeline: /etc/realtimefmri/pipeline.yaml
ingest:
  source: directory
  directory: /data/spool
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "*.nii", cfg.Ingest.Pattern)
	assert.Equal(t, "fmri_runs", cfg.Recording.Bucket)
	assert.Equal(t, 64, cfg.Display.QueueSize)
	assert.Equal(t, "/data/spool", cfg.Ingest.Directory)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+"\nredis:\n  host: x\n"))
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REALTIMEFMRI_NATS_URL", "nats://scanner-host:4222")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "nats://scanner-host:4222", cfg.NATS.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Pipeline = "pipeline.yaml"
		cfg.Ingest.Directory = "/data/spool"
		return cfg
	}

	assert.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing pipeline", func(c *Config) { c.Pipeline = "" }},
		{"missing nats url", func(c *Config) { c.NATS.URL = "" }},
		{"directory source without directory", func(c *Config) { c.Ingest.Directory = "" }},
		{"nats source without subject", func(c *Config) { c.Ingest.Source = SourceNATS }},
		{"unknown source", func(c *Config) { c.Ingest.Source = "carrier-pigeon" }},
		{"missing recording dir", func(c *Config) { c.Recording.Directory = "" }},
		{"missing bucket", func(c *Config) { c.Recording.Bucket = "" }},
		{"negative queue", func(c *Config) { c.Display.QueueSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsConfig(err))
		})
	}
}

func TestNATSSourceValid(t *testing.T) {
	cfg := Default()
	cfg.Pipeline = "pipeline.yaml"
	cfg.Ingest = IngestConfig{Source: SourceNATS, Subject: "fmri.volumes"}
	assert.NoError(t, cfg.Validate())
}
