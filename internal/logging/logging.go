// Package logging adapts go.uber.org/zap to the structured Logger contract
// used by the routing service and daemon.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap SugaredLogger. Arguments after msg are alternating
// key/value pairs.
type Logger struct {
	sugar *zap.SugaredLogger
}

// Config selects the level and encoding of a Logger.
type Config struct {
	Level  string // debug|info|warn|error (default info)
	Format string // json|console (default json)
}

// New builds a Logger writing to stderr.
func New(level, format string) (*Logger, error) {
	return Config{Level: level, Format: format}.New()
}

// New builds a Logger from c.
func (c Config) New() (*Logger, error) {
	lvl := zapcore.InfoLevel
	if c.Level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(c.Level))); err != nil {
			return nil, fmt.Errorf("log level %q: %w", c.Level, err)
		}
	}
	var cfg zap.Config
	switch strings.ToLower(c.Format) {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: z.Sugar()}, nil
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *Logger { return &Logger{sugar: z.Sugar()} }

// Nop returns a Logger that discards everything.
func Nop() *Logger { return FromZap(zap.NewNop()) }

func (l *Logger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// Named returns a child logger with name appended to the logger name.
func (l *Logger) Named(name string) *Logger { return &Logger{sugar: l.sugar.Named(name)} }

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...any) *Logger { return &Logger{sugar: l.sugar.With(args...)} }

// Sync flushes buffered entries.
func (l *Logger) Sync() error { return l.sugar.Sync() }
