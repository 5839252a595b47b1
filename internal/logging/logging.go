// Package logging builds logtrail's diagnostic logger. There is no global
// logger; the result of New is passed down explicitly.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/clarabennett2626/logtrail/internal/config"
)

// Options selects where log output goes when no file is configured.
type Options struct {
	// Stderr sends output to standard error. The TUI owns the terminal, so it
	// leaves this off and gets a no-op logger unless a file is set.
	Stderr bool
}

// New returns a logger for cfg. With cfg.File set, output goes to a
// lumberjack-rotated file.
func New(cfg config.LoggingConfig, opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var sink zapcore.WriteSyncer
	switch {
	case cfg.File != "":
		path, err := config.ExpandPath(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	case opts.Stderr:
		sink = zapcore.Lock(os.Stderr)
	default:
		return zap.NewNop(), nil
	}

	return newLogger(sink, level), nil
}

// NewWriter returns a logger writing to w, for tests and tools.
func NewWriter(w io.Writer, level zapcore.Level) *zap.Logger {
	return newLogger(zapcore.AddSync(w), level)
}

func newLogger(sink zapcore.WriteSyncer, level zapcore.Level) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.AddCaller())
}

// ParseLevel accepts debug, info, warn or error; empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
