package utils

import (
	"context"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

type contextKey string

const loggerKey = contextKey("logger")

// NewLogger builds the JSON stdout logger requests and jobs log through. An
// unknown level falls back to info rather than failing startup.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}

// WithLogger stores the logger on the context for LoggerFromContext.
func WithLogger(ctx context.Context, logger *logrus.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

var (
	fallbackOnce   sync.Once
	fallbackLogger *logrus.Logger
)

// LoggerFromContext returns the context's logger, or a shared stdout
// fallback when the context carries none.
func LoggerFromContext(ctx context.Context) *logrus.Logger {
	if logger, ok := ctx.Value(loggerKey).(*logrus.Logger); ok {
		return logger
	}
	fallbackOnce.Do(func() {
		fallbackLogger = NewLogger("info")
	})
	return fallbackLogger
}
