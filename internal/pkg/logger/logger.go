package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *slog.Logger

// ParseLevel maps a config level string onto zap and slog levels. Unknown values fall back to info.
func ParseLevel(levelStr string) (zapcore.Level, slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return zapcore.DebugLevel, slog.LevelDebug, true
	case "INFO", "":
		return zapcore.InfoLevel, slog.LevelInfo, true
	case "WARN", "WARNING":
		return zapcore.WarnLevel, slog.LevelWarn, true
	case "ERROR":
		return zapcore.ErrorLevel, slog.LevelError, true
	default:
		return zapcore.InfoLevel, slog.LevelInfo, false
	}
}

// Init builds the root zap logger for levelStr and routes the global slog logger through it.
// The returned zap logger should be synced by the caller on shutdown.
func Init(levelStr string) (*zap.Logger, error) {
	zapLevel, slogLevel, ok := ParseLevel(levelStr)

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	handler := slogzap.Option{Level: slogLevel, Logger: zapLogger}.NewZapHandler()
	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	if !ok {
		globalLogger.Warn("Invalid log level string, defaulting to INFO", "input", levelStr)
	}
	return zapLogger, nil
}

// InitSlog initializes the global slog logger with a plain JSON handler. Used before config is loaded.
func InitSlog(levelStr string) {
	_, parsedLevel, ok := ParseLevel(levelStr)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parsedLevel})
	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	if !ok {
		globalLogger.Warn("Invalid log level string, defaulting to INFO", "input", levelStr)
	}
}

func ensureInitialized() {
	if globalLogger == nil {
		InitSlog("INFO")
	}
}

// Debug logs a message at DebugLevel.
func Debug(msg string, args ...any) {
	ensureInitialized()
	if globalLogger.Enabled(context.Background(), slog.LevelDebug) {
		globalLogger.Debug(msg, args...)
	}
}

// Info logs a message at InfoLevel.
func Info(msg string, args ...any) {
	ensureInitialized()
	if globalLogger.Enabled(context.Background(), slog.LevelInfo) {
		globalLogger.Info(msg, args...)
	}
}

// Warn logs a message at WarnLevel.
func Warn(msg string, args ...any) {
	ensureInitialized()
	if globalLogger.Enabled(context.Background(), slog.LevelWarn) {
		globalLogger.Warn(msg, args...)
	}
}

// Error logs a message at ErrorLevel.
func Error(msg string, args ...any) {
	ensureInitialized()
	if globalLogger.Enabled(context.Background(), slog.LevelError) {
		globalLogger.Error(msg, args...)
	}
}

// Fatal logs a message at ErrorLevel then exits.
func Fatal(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Error(msg, args...)
	os.Exit(1)
}
