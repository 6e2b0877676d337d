package util

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultLogger *zap.Logger

func init() {
	defaultLogger = NewLogger("hardenspec")
}

// NewLogger creates a new logger with the specified name
func NewLogger(name string) *zap.Logger {
	level := getLogLevel()

	config := zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger.Named(name)
}

func getLogLevel() zapcore.Level {
	return parseLevel(os.Getenv("HARDENSPEC_LOG_LEVEL"))
}

func parseLevel(levelStr string) zapcore.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "CRITICAL", "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.WarnLevel
	}
}

// SetLogLevel rebuilds the default logger at the given level name
func SetLogLevel(levelStr string) {
	_ = os.Setenv("HARDENSPEC_LOG_LEVEL", levelStr)
	defaultLogger = NewLogger("hardenspec")
}

// GetLogger returns the default logger
func GetLogger() *zap.Logger {
	return defaultLogger
}
