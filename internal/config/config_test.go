package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdm/internal/classify"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvWatermark, EnvOpacity, EnvFontSize, EnvKeepTimes, EnvOverwrite, EnvWorkers} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mdm.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
watermark = "CONFIDENTIAL"
wm_opacity = 0.3
wm_size = 24
overwrite = true
workers = 2

[extensions]
gif = "copy"
".tif" = "image"
JPG = "copy"
`)
	t.Setenv(EnvWorkers, "6")
	t.Setenv(EnvKeepTimes, "true")
	t.Setenv(EnvOpacity, "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "CONFIDENTIAL", cfg.Watermark)
	assert.InDelta(t, 0.3, cfg.Opacity, 1e-9)
	assert.Equal(t, 24, cfg.FontSize)
	assert.True(t, cfg.Overwrite)
	assert.True(t, cfg.KeepTimes)
	assert.Equal(t, 6, cfg.Workers)

	table, err := cfg.Table()
	require.NoError(t, err)
	c := classify.New(table)
	assert.Equal(t, classify.Passthrough, c.Classify("a.gif"))
	assert.Equal(t, classify.Image, c.Classify("a.TIF"))
	assert.Equal(t, classify.PDF, c.Classify("a.pdf"))
	assert.Equal(t, classify.Passthrough, c.Classify("a.jpg"))
	assert.Equal(t, classify.Image, c.Classify("a.jpeg"))
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "workers = [not toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "opacity above one", mutate: func(c *Config) { c.Opacity = 1.5 }},
		{name: "negative opacity", mutate: func(c *Config) { c.Opacity = -0.1 }},
		{name: "zero font size", mutate: func(c *Config) { c.FontSize = 0 }},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }},
		{name: "unknown category", mutate: func(c *Config) { c.Extensions = map[string]string{"mov": "video"} }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
