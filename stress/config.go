// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package stress

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/syncenv/env"
)

//go:embed data/config.schema.json
var configSchema []byte

// Backend selects the table a stress run exercises.
type Backend string

const (
	// BackendOS runs against the real process environment.
	BackendOS Backend = "os"
	// BackendMap runs against a private in-memory table.
	BackendMap Backend = "map"
)

// Environment variables that override the config file.
const (
	EnvWorkers    = "ENVSTRESS_WORKERS"
	EnvReaders    = "ENVSTRESS_READERS"
	EnvIterations = "ENVSTRESS_ITERATIONS"
	EnvDuration   = "ENVSTRESS_DURATION"
	EnvRate       = "ENVSTRESS_RATE"
	EnvBackend    = "ENVSTRESS_BACKEND"
	EnvMode       = "ENVSTRESS_MODE"
)

// Config holds all configuration for a stress run.
type Config struct {
	Workers    int           // goroutines, each owning one variable name
	Readers    int           // goroutines enumerating the table concurrently
	Iterations int           // set/get/remove cycles per worker
	Duration   time.Duration // optional wall-clock limit, 0 for none
	Rate       float64       // total cycles per second across workers, 0 for unlimited
	Backend    Backend
	Mode       env.Mode
	ValueSize  int // padding bytes per value
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Workers:    8,
		Readers:    1,
		Iterations: 1000,
		Backend:    BackendMap,
		Mode:       env.ModeReadWrite,
		ValueSize:  64,
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Readers < 0 {
		return fmt.Errorf("readers cannot be negative")
	}
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be positive")
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate cannot be negative")
	}
	if c.ValueSize < 0 {
		return fmt.Errorf("value size cannot be negative")
	}
	if c.Backend != BackendOS && c.Backend != BackendMap {
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Mode != env.ModeReadWrite && c.Mode != env.ModeExclusive {
		return fmt.Errorf("unknown mode %d", c.Mode)
	}
	if c.Backend == BackendOS && c.Mode != env.ModeReadWrite {
		return fmt.Errorf("mode %s is not available for the os backend, which always uses the process read-write guard", c.Mode)
	}
	return nil
}

// ParseMode converts "rw" or "exclusive" into an env.Mode.
func ParseMode(s string) (env.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rw", "":
		return env.ModeReadWrite, nil
	case "exclusive", "mutex":
		return env.ModeExclusive, nil
	default:
		return env.ModeReadWrite, fmt.Errorf("unknown mode %q", s)
	}
}

// ParseBackend converts "os" or "map" into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendOS, BackendMap:
		return b, nil
	default:
		return "", fmt.Errorf("unknown backend %q", s)
	}
}

// ConfigPath returns the config file location within the given config home.
func ConfigPath(configHome string) string {
	return filepath.Join(configHome, "syncenv", "stress.yaml")
}

// DefaultConfigPath returns the config file location using XDG base directory conventions.
func DefaultConfigPath() string {
	return ConfigPath(xdg.ConfigHome)
}

type fileConfig struct {
	Workers    *int     `yaml:"workers"`
	Readers    *int     `yaml:"readers"`
	Iterations *int     `yaml:"iterations"`
	Duration   string   `yaml:"duration"`
	Rate       *float64 `yaml:"rate"`
	Backend    string   `yaml:"backend"`
	Mode       string   `yaml:"mode"`
	ValueSize  *int     `yaml:"value_size"`
}

// LoadConfig reads a YAML config file over the defaults. A missing file is
// not an error when missingOK is set.
func LoadConfig(path string, missingOK bool) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if missingOK && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := cfg.merge(data); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) merge(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	if raw == nil {
		return nil
	}
	if err := validateAgainstSchema(raw); err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	if fc.Workers != nil {
		c.Workers = *fc.Workers
	}
	if fc.Readers != nil {
		c.Readers = *fc.Readers
	}
	if fc.Iterations != nil {
		c.Iterations = *fc.Iterations
	}
	if fc.Rate != nil {
		c.Rate = *fc.Rate
	}
	if fc.ValueSize != nil {
		c.ValueSize = *fc.ValueSize
	}
	if fc.Duration != "" {
		d, err := time.ParseDuration(fc.Duration)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		c.Duration = d
	}
	if fc.Backend != "" {
		b, err := ParseBackend(fc.Backend)
		if err != nil {
			return err
		}
		c.Backend = b
	}
	if fc.Mode != "" {
		m, err := ParseMode(fc.Mode)
		if err != nil {
			return err
		}
		c.Mode = m
	}
	return nil
}

func validateAgainstSchema(doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(configSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("config schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("config schema validation failed: %s", strings.Join(msgs, "; "))
}

// ApplyEnv overrides fields from ENVSTRESS_* variables read through r.
func (c *Config) ApplyEnv(r env.Reader) error {
	var errs []error

	setInt := func(key string, dst *int) {
		if raw := r.Getenv(key); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = v
		}
	}
	setInt(EnvWorkers, &c.Workers)
	setInt(EnvReaders, &c.Readers)
	setInt(EnvIterations, &c.Iterations)

	if raw := r.Getenv(EnvDuration); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvDuration, err))
		} else {
			c.Duration = d
		}
	}
	if raw := r.Getenv(EnvRate); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvRate, err))
		} else {
			c.Rate = v
		}
	}
	if raw := r.Getenv(EnvBackend); raw != "" {
		b, err := ParseBackend(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvBackend, err))
		} else {
			c.Backend = b
		}
	}
	if raw := r.Getenv(EnvMode); raw != "" {
		m, err := ParseMode(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvMode, err))
		} else {
			c.Mode = m
		}
	}

	return errors.Join(errs...)
}

// NewAccessor builds the accessor the config describes. Extra options are
// applied after the table and mode.
func (c *Config) NewAccessor(extra ...env.Option) *env.Accessor {
	opts := []env.Option{env.WithMode(c.Mode)}
	if c.Backend == BackendMap {
		opts = append(opts, env.WithTable(env.NewMapTable(nil)))
	}
	return env.New(append(opts, extra...)...)
}
