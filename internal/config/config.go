// Package config loads logtrail's settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/clarabennett2626/logtrail/internal/source"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "~/.config/logtrail/config.yaml"

// Config is the whole settings file.
type Config struct {
	Follow  FollowConfig  `yaml:"follow" toml:"follow"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	UI      UIConfig      `yaml:"ui" toml:"ui"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// FollowConfig holds the engine tunables.
type FollowConfig struct {
	TailBytes      int64    `yaml:"tail_bytes" toml:"tail_bytes"`
	TailRecords    int      `yaml:"tail_records" toml:"tail_records"`
	PollInterval   Duration `yaml:"poll_interval" toml:"poll_interval"`
	StallThreshold int      `yaml:"stall_threshold" toml:"stall_threshold"`
	RetryDelay     Duration `yaml:"retry_delay" toml:"retry_delay"`
	MaxBatch       int      `yaml:"max_batch" toml:"max_batch"`
	Watch          bool     `yaml:"watch" toml:"watch"`
}

// LoggingConfig controls logtrail's own diagnostic log.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// UIConfig controls the terminal viewer.
type UIConfig struct {
	Theme           string   `yaml:"theme" toml:"theme"`
	TimestampFormat string   `yaml:"timestamp_format" toml:"timestamp_format"`
	Wrap            bool     `yaml:"wrap" toml:"wrap"`
	ShowFields      bool     `yaml:"show_fields" toml:"show_fields"`
	FieldOrder      []string `yaml:"field_order" toml:"field_order"`
	MaxLines        int      `yaml:"max_lines" toml:"max_lines"`
	Filter          string   `yaml:"filter" toml:"filter"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// Duration is a time.Duration written as a string such as "1s" or "250ms".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{
		Follow: FollowConfig{
			TailBytes:      source.DefaultTailBytes,
			TailRecords:    source.DefaultTailRecords,
			PollInterval:   Duration(source.DefaultPollInterval),
			StallThreshold: source.DefaultStallThreshold,
			RetryDelay:     Duration(source.DefaultRetryDelay),
			MaxBatch:       source.DefaultMaxBatch,
			Watch:          true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		UI: UIConfig{
			Theme:           "dark",
			TimestampFormat: "local",
			MaxLines:        50_000,
		},
	}
}

// Load reads the file at path, or DefaultPath when path is empty. A missing
// file is not an error; the defaults are returned. Files ending in .toml
// are parsed as TOML, anything else as YAML. Keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(resolved), ".toml") {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", resolved, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", resolved, err)
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c Config) Validate() error {
	var errs []error
	f := c.Follow
	if f.TailBytes <= 0 {
		errs = append(errs, fmt.Errorf("follow.tail_bytes must be positive, got %d", f.TailBytes))
	}
	if f.TailRecords <= 0 {
		errs = append(errs, fmt.Errorf("follow.tail_records must be positive, got %d", f.TailRecords))
	}
	if f.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("follow.poll_interval must be positive, got %s", time.Duration(f.PollInterval)))
	}
	if f.StallThreshold <= 0 {
		errs = append(errs, fmt.Errorf("follow.stall_threshold must be positive, got %d", f.StallThreshold))
	}
	if f.RetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("follow.retry_delay must be positive, got %s", time.Duration(f.RetryDelay)))
	}
	if f.MaxBatch <= 0 {
		errs = append(errs, fmt.Errorf("follow.max_batch must be positive, got %d", f.MaxBatch))
	}
	if c.UI.MaxLines <= 0 {
		errs = append(errs, fmt.Errorf("ui.max_lines must be positive, got %d", c.UI.MaxLines))
	}
	switch strings.ToLower(c.UI.Theme) {
	case "dark", "light":
	default:
		errs = append(errs, fmt.Errorf("ui.theme must be dark or light, got %q", c.UI.Theme))
	}
	switch strings.ToLower(c.UI.TimestampFormat) {
	case "local", "iso", "relative":
	default:
		errs = append(errs, fmt.Errorf("ui.timestamp_format must be local, iso or relative, got %q", c.UI.TimestampFormat))
	}
	return errors.Join(errs...)
}

// FileConfig maps the follow section onto the engine's configuration.
func (c Config) FileConfig() (source.FileConfig, error) {
	if err := c.Validate(); err != nil {
		return source.FileConfig{}, err
	}
	f := c.Follow
	return source.FileConfig{
		TailBytes:      f.TailBytes,
		TailRecords:    f.TailRecords,
		PollInterval:   time.Duration(f.PollInterval),
		StallThreshold: f.StallThreshold,
		RetryDelay:     time.Duration(f.RetryDelay),
		MaxBatch:       f.MaxBatch,
		Watch:          f.Watch,
	}, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return ExpandPath(DefaultPath)
	}
	return ExpandPath(path)
}

// ExpandPath resolves a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
