// Package config loads the dircount YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mwantia/dircount/blob/s3"
	"github.com/mwantia/dircount/data"
	"github.com/mwantia/dircount/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Backend address, e.g. "sqlite:///var/lib/dircount.db"
	Backend string `yaml:"backend"`

	Log     LogConfig     `yaml:"log"`
	Counter CounterConfig `yaml:"counter"`
	Hook    HookConfig    `yaml:"hook"`

	// Blob enables content storage for put in an S3 bucket.
	Blob *s3.S3Config `yaml:"blob,omitempty"`
}

type LogConfig struct {
	Level      string              `yaml:"level"`
	File       string              `yaml:"file"`
	JSON       bool                `yaml:"json"`
	NoTerminal bool                `yaml:"no_terminal"`
	Rotation   *log.LoggerRotation `yaml:"rotation,omitempty"`
}

type CounterConfig struct {
	// MaxAttempts bounds the create loop and unit of work retries.
	MaxAttempts int `yaml:"max_attempts"`
}

// HookConfig is the binding ensured by "dircount install".
type HookConfig struct {
	Table          string `yaml:"table"`
	Hook           string `yaml:"hook"`
	Version        int    `yaml:"version"`
	Implementation string `yaml:"implementation"`
}

func (h HookConfig) Slot() data.Slot {
	return data.Slot{Table: h.Table, Hook: h.Hook}
}

func Default() *Config {
	return &Config{
		Backend: "memory://",
		Log: LogConfig{
			Level: "info",
		},
		Counter: CounterConfig{
			MaxAttempts: 50,
		},
		Hook: HookConfig{
			Table:          data.DefaultSlot.Table,
			Hook:           data.DefaultSlot.Hook,
			Version:        2,
			Implementation: "dir_count_v2",
		},
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(content)
}

// Parse decodes YAML content on top of the defaults and validates the result.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Backend) == "" {
		errs = append(errs, errors.New("backend: address is required"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Counter.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("counter.max_attempts: must be at least 1, got %d", c.Counter.MaxAttempts))
	}
	if err := c.Hook.Slot().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hook: %w", err))
	}
	if c.Hook.Version < 0 {
		errs = append(errs, fmt.Errorf("hook.version: %w: %d", data.ErrInvalidVersion, c.Hook.Version))
	}
	if err := data.ValidateIdentifier(c.Hook.Implementation); err != nil {
		errs = append(errs, fmt.Errorf("hook.implementation: %w", err))
	}
	if c.Blob != nil && (c.Blob.Endpoint == "" || c.Blob.Bucket == "") {
		errs = append(errs, errors.New("blob: endpoint and bucket are required"))
	}

	return errors.Join(errs...)
}

// Logger creates the root logger described by the log settings.
func (c *Config) Logger() *log.Logger {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		level = log.Info
	}

	logger := log.NewLogger("dircount", level, c.Log.File, c.Log.NoTerminal)
	logger.JSON = c.Log.JSON
	if c.Log.Rotation != nil {
		logger.SetRotation(c.Log.Rotation)
	}
	return logger
}
