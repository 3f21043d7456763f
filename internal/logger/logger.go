package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level      string     `yaml:"level" default:"info" validate:"required,oneof=trace debug info warn error"`
	Format     string     `yaml:"format" default:"json" validate:"required,oneof=json console"`
	Output     string     `yaml:"output" default:"stdout" validate:"required,oneof=stdout stderr file"`
	TimeFormat string     `yaml:"time_format"`
	File       FileConfig `yaml:"file"`
}

// FileConfig drives lumberjack rotation when Output is "file"
type FileConfig struct {
	Path       string `yaml:"path" default:"logs/sniper.log"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"50" validate:"gte=1"`
	MaxBackups int    `yaml:"max_backups" default:"5" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" default:"14" validate:"gte=0"`
	Compress   bool   `yaml:"compress" default:"true"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the process logger. The closer flushes the rotated file and
// is a no-op for stdout and stderr.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer
	var closer io.Closer = nopCloser{}
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.File.Path), 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		output, closer = rotating, rotating
	default:
		return zerolog.Nop(), nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: timeFormat, NoColor: cfg.Output == "file"}
	}

	log := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "reversal-sniper").
		Logger()
	return log, closer, nil
}
