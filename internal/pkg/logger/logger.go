// Package logger wraps zap into a small, easy-to-pass-around handle.
package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger wraps a zap SugaredLogger so call sites use key/value pairs
// rather than the structured-field constructors directly.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a Logger. mode selects the zap config: "prod"/"production"
// (case-insensitive) gets the production JSON encoder; anything else gets
// the human-readable development encoder. Level is always Debug so
// operators can raise verbosity without a rebuild.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{s: z.Sugar()}, nil
}

// With returns a new Logger with the given key/value pairs attached to
// every subsequent log line.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{s: l.s.With(keysAndValues...)}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) { l.s.Debugw(msg, keysAndValues...) }
func (l *Logger) Info(msg string, keysAndValues ...interface{})  { l.s.Infow(msg, keysAndValues...) }
func (l *Logger) Warn(msg string, keysAndValues ...interface{})  { l.s.Warnw(msg, keysAndValues...) }
func (l *Logger) Error(msg string, keysAndValues ...interface{}) { l.s.Errorw(msg, keysAndValues...) }
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) { l.s.Fatalw(msg, keysAndValues...) }

// Sync flushes any buffered log entries. Call before process exit.
func (l *Logger) Sync() error { return l.s.Sync() }
