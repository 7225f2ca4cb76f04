// Package logging builds the leveled log sink shared by all components.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006.01.02 15:04:05"

// Config controls where and how much is logged
type Config struct {
	File       string    // Rotating log file; empty disables file logging
	Level      string    // debug, info, warn, error
	MaxBackups int       // Rotated files to keep
	MaxSizeMB  int       // Size at which the file is rotated
	Console    io.Writer // Console sink; defaults to stderr
}

// New creates a logger writing to the console and, if configured, a rotating file
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}

	encoder := zapcore.NewConsoleEncoder(encoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(console), level),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxBackups: cfg.MaxBackups,
			MaxSize:    cfg.MaxSizeMB,
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

// encoderConfig renders lines as "[2006.01.02 15:04:05] INFO: message {fields}"
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		ConsoleSeparator: " ",
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + t.Format(timeLayout) + "]")
		},
		EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(l.CapitalString() + ":")
		},
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// Critical logs a fatal run failure. zap has no critical level, so the
// entry is written at error level and tagged.
func Critical(logger *zap.Logger, msg string, fields ...zap.Field) {
	logger.Error(msg, append(fields, zap.String("severity", "critical"))...)
}
