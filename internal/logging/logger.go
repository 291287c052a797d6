package logging

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger initializes the structured logger based on environment configuration
func InitLogger() {
	logLevel := getLogLevel()
	logFormat := getLogFormat()

	handlerOpts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: true,
	}

	var handler slog.Handler
	switch logFormat {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	default:
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	}

	slog.SetDefault(slog.New(handler).With("service", "fleetdash"))

	slog.Info("logger initialized",
		"level", logLevel.String(),
		"format", logFormat,
	)
}

// getLogLevel reads LOG_LEVEL and returns the corresponding slog.Level
func getLogLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getLogFormat reads LOG_FORMAT; anything other than "json" means text
func getLogFormat() string {
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		return "json"
	}
	return "text"
}
