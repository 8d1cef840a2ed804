package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	logger *zap.SugaredLogger
)

// Init configures the package logger at the given level. Logs go to stderr so
// they do not interfere with the terminal UI on stdout.
func Init(level string) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	z, err := cfg.Build()
	if err != nil {
		z, _ = zap.NewDevelopment()
	}

	mu.Lock()
	logger = z.Sugar()
	mu.Unlock()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func init() {
	Init(os.Getenv("SSOGRAB_LOG_LEVEL"))
}

func get() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	get().Debugf(format, args...)
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	get().Infof(format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) {
	get().Warnf(format, args...)
}

// Errorf logs an error.
func Errorf(format string, args ...interface{}) {
	get().Errorf(format, args...)
}

// Sync flushes any buffered log entries.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		_ = logger.Sync()
	}
}
