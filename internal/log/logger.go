// Package log provides structured logging for resolution calls.
//
// Two variants are available:
//   - Logger: non-sugared zap.Logger for the resolution pipeline
//   - SugaredLogger: printf-style logging for CLI/debug surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed. Library
// packages default to Nop() so embedding the resolver stays quiet.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.Logger. The zero value is not usable; construct with
// New or Nop.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a JSON logger writing to os.Stderr at the given level.
func New(debug bool) *Logger {
	return NewWithWriter(os.Stderr, debug)
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer, debug bool) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
	return &Logger{zap: zap.New(core)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// WithResolution returns a logger stamped with the resolution id and USI,
// carried on every entry the pipeline emits for that call.
func (l *Logger) WithResolution(id, usi string) *Logger {
	return &Logger{zap: l.zap.With(zap.String("resolution_id", id), zap.String("usi", usi))}
}

// Debug logs a debug message with structured fields.
func (l *Logger) Debug(message string, fields ...zap.Field) {
	l.zap.Debug(message, fields...)
}

// Info logs an info message with structured fields.
func (l *Logger) Info(message string, fields ...zap.Field) {
	l.zap.Info(message, fields...)
}

// Warn logs a warning message with structured fields.
func (l *Logger) Warn(message string, fields ...zap.Field) {
	l.zap.Warn(message, fields...)
}

// Error logs an error message with structured fields.
func (l *Logger) Error(message string, fields ...zap.Field) {
	l.zap.Error(message, fields...)
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}
