// Package logger builds the zap loggers used by every service binary.
package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Option customizes logger construction.
type Option func(*options)

type options struct {
	filePath   string
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
}

// WithFile tees log output into a size-rotated file at path.
func WithFile(path string) Option {
	return func(o *options) { o.filePath = path }
}

// WithRotation overrides the rotation limits of the file sink.
func WithRotation(maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(o *options) {
		o.maxSizeMB = maxSizeMB
		o.maxBackups = maxBackups
		o.maxAgeDays = maxAgeDays
	}
}

// New creates a logger for the given environment.
// "production" gets JSON at info level, anything else console output at debug level.
func New(env string, opts ...Option) (*zap.Logger, error) {
	o := options{maxSizeMB: 10, maxBackups: 7, maxAgeDays: 28}
	for _, opt := range opts {
		opt(&o)
	}

	production := env == "production"

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	level := zap.DebugLevel
	if production {
		encoderConfig = zap.NewProductionEncoderConfig()
		level = zap.InfoLevel
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	encoder := zapcore.NewConsoleEncoder(encoderConfig)
	if production {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
	}

	if o.filePath != "" {
		if err := os.MkdirAll(filepath.Dir(o.filePath), 0o755); err != nil {
			return nil, err
		}
		// File output is always JSON so it can be shipped as-is.
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   o.filePath,
			MaxSize:    o.maxSizeMB,
			MaxBackups: o.maxBackups,
			MaxAge:     o.maxAgeDays,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), fileWriter, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// NewNamed creates a logger and tags every entry with the service name.
func NewNamed(env, service string, opts ...Option) (*zap.Logger, error) {
	log, err := New(env, opts...)
	if err != nil {
		return nil, err
	}
	return log.Named(service).With(zap.String("service", service)), nil
}
