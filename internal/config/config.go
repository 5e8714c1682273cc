// Package config loads the pipedemo configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/jacoelho/fdpipe"
)

// Config is the complete pipedemo configuration.
type Config struct {
	Kernel KernelConfig `yaml:"kernel"`
	Log    LogConfig    `yaml:"log"`
	Demo   DemoConfig   `yaml:"demo"`
}

// KernelConfig holds the limits applied to every task.
type KernelConfig struct {
	Capacity  int `yaml:"capacity"`   // slots per pipe buffer
	TableSize int `yaml:"table_size"` // endpoints per task
}

// LogConfig selects log verbosity and format.
type LogConfig struct {
	Level   string `yaml:"level"`   // trace, debug, info, warn, error
	Console bool   `yaml:"console"` // human readable instead of JSON
}

// DemoConfig shapes the producer/consumer run.
type DemoConfig struct {
	Consumers int    `yaml:"consumers"`
	Lines     int    `yaml:"lines"`
	Message   string `yaml:"message"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Kernel: KernelConfig{
			Capacity:  fdpipe.DefaultCapacity,
			TableSize: fdpipe.DefaultTableSize,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
		Demo: DemoConfig{
			Consumers: 2,
			Lines:     16,
			Message:   "hello through the pipe",
		},
	}
}

// Load reads and validates the file at path. Fields missing from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that every field is in range.
func (c *Config) Validate() error {
	var errs []error
	if c.Kernel.Capacity < 1 {
		errs = append(errs, fmt.Errorf("kernel.capacity must be at least 1, got %d", c.Kernel.Capacity))
	}
	if c.Kernel.TableSize < 2 {
		errs = append(errs, fmt.Errorf("kernel.table_size must be at least 2, got %d", c.Kernel.TableSize))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Demo.Consumers < 1 {
		errs = append(errs, fmt.Errorf("demo.consumers must be at least 1, got %d", c.Demo.Consumers))
	}
	if c.Demo.Lines < 0 {
		errs = append(errs, fmt.Errorf("demo.lines must not be negative, got %d", c.Demo.Lines))
	}
	return errors.Join(errs...)
}

// Logger builds the logger described by c, writing to w.
func (c *LogConfig) Logger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return zerolog.Nop(), err
	}
	if c.Console {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// Options converts the kernel section into fdpipe options.
func (c *Config) Options(log zerolog.Logger) []fdpipe.Option {
	return []fdpipe.Option{
		fdpipe.WithCapacity(c.Kernel.Capacity),
		fdpipe.WithTableSize(c.Kernel.TableSize),
		fdpipe.WithLogger(log),
	}
}
