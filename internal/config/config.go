// Package config resolves run settings from defaults, an optional TOML file
// and the environment. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"mdm/internal/classify"
	"mdm/internal/watermark"
)

// Environment variables read by Load.
const (
	EnvWatermark = "MDM_WATERMARK"
	EnvOpacity   = "MDM_WM_OPACITY"
	EnvFontSize  = "MDM_WM_SIZE"
	EnvKeepTimes = "MDM_KEEP_TIMES"
	EnvOverwrite = "MDM_OVERWRITE"
	EnvWorkers   = "MDM_WORKERS"
)

type Config struct {
	Watermark string  `toml:"watermark"`
	Opacity   float64 `toml:"wm_opacity"`
	FontSize  int     `toml:"wm_size"`
	KeepTimes bool    `toml:"keep_times"`
	Overwrite bool    `toml:"overwrite"`
	Workers   int     `toml:"workers"`

	// Extensions adds to or overrides the default classification table,
	// e.g. {"tiff" = "copy"}.
	Extensions map[string]string `toml:"extensions"`
}

func Default() Config {
	return Config{
		Opacity:  watermark.DefaultOpacity,
		FontSize: watermark.DefaultFontSize,
		Workers:  runtime.NumCPU(),
	}
}

// Load starts from Default, applies the TOML file at path when path is not
// empty, then a .env file in the working directory if present, then the
// process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	cfg.Watermark = getEnv(EnvWatermark, cfg.Watermark)
	cfg.Opacity = getEnvAsFloat(EnvOpacity, cfg.Opacity)
	cfg.FontSize = getEnvAsInt(EnvFontSize, cfg.FontSize)
	cfg.KeepTimes = getEnvAsBool(EnvKeepTimes, cfg.KeepTimes)
	cfg.Overwrite = getEnvAsBool(EnvOverwrite, cfg.Overwrite)
	cfg.Workers = getEnvAsInt(EnvWorkers, cfg.Workers)

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Opacity < 0 || c.Opacity > 1 {
		errs = append(errs, fmt.Errorf("wm_opacity must be within [0,1], got %g", c.Opacity))
	}
	if c.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("wm_size must be positive, got %d", c.FontSize))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if _, err := c.Table(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Table returns the default classification table with Extensions applied.
func (c Config) Table() (classify.Table, error) {
	table := classify.DefaultTable()
	for ext, name := range c.Extensions {
		cat, err := classify.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("extensions.%s: %w", ext, err)
		}
		table[classify.NormalizeExt(ext)] = cat
	}
	return table, nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultVal
}
