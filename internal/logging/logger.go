// Package logging holds the process-wide zap logger.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar overrides the level when none is passed to Initialize.
// Valid values: "debug", "info", "warn", "error".
const LogLevelEnvVar = "DOORBELL_LOG_LEVEL"

// Outputs accepted by Initialize.
const (
	OutputStdout = "stdout"
	OutputSyslog = "syslog"
)

// SyslogTag is the ident syslog entries are tagged with.
const SyslogTag = "doorbell-pi"

// Initialize builds the global logger. An empty level falls back to
// DOORBELL_LOG_LEVEL, then to info. An empty output means stdout.
func Initialize(level, output string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		level = "info"
	}
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	var core zapcore.Core
	switch output {
	case OutputStdout, "":
		core = zapcore.NewCore(consoleEncoder(true), zapcore.Lock(os.Stdout), zapLevel)
	case OutputSyslog:
		w, err := openSyslog(SyslogTag)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		// syslog stamps its own time.
		core = newSyslogCore(w, consoleEncoder(false), zapLevel)
	default:
		return fmt.Errorf("failed to initialize logger: unknown output %q", output)
	}

	logger = zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	return nil
}

func consoleEncoder(withTime bool) zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	if !withTime {
		cfg.TimeKey = ""
	}
	return zapcore.NewConsoleEncoder(cfg)
}

// SetLogger replaces the global logger.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger instance.
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Named returns a child of the global logger for one component.
func Named(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
