// Package config loads the device pipeline configuration from YAML.
package config

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration parses YAML durations in Go's "1s"/"500ms" notation.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return errors.Wrap(err, "unable to decode duration")
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", raw)
	}
	*d = Duration(parsed)

	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Retry configures the pipeline's retry stage.
type Retry struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Interval    Duration `yaml:"interval"`
	Burst       int      `yaml:"burst"`
}

// Config is the full pipeline configuration.
type Config struct {
	LogLevel     string `yaml:"log_level"`
	QueueSize    int    `yaml:"queue_size"`
	Retry        Retry  `yaml:"retry"`
	Metrics      bool   `yaml:"metrics"`
	ChainDiagram string `yaml:"chain_diagram"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		LogLevel:  "info",
		QueueSize: 128,
		Retry: Retry{
			MaxAttempts: 3,
			Interval:    Duration(time.Second),
			Burst:       1,
		},
	}
}

// Load reads a YAML configuration, filling unset fields with defaults.
// Unknown fields are an error.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}

		return Config{}, errors.Wrap(err, "unable to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to open configuration file %q", path)
	}
	defer file.Close()

	cfg, err := Load(file)
	if err != nil {
		return Config{}, errors.Wrapf(err, "configuration file %q", path)
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.QueueSize <= 0 {
		return errors.New("queue_size must be greater than 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts must be greater than 0")
	}
	if c.Retry.Interval <= 0 {
		return errors.New("retry.interval must be greater than 0")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel maps the configured log level onto slog.
func (c Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.Errorf("unknown log_level %q", c.LogLevel)
	}
}
