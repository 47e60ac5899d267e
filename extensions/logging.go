package extensions

import (
	"context"
	"log/slog"
	"time"

	kiln "github.com/kiln-fn/kiln-go"
)

// LoggingExtension logs all container operations through slog.
type LoggingExtension struct {
	kiln.BaseExtension
	logger *slog.Logger
}

// NewLoggingExtension creates a logging extension over the given handler.
func NewLoggingExtension(handler slog.Handler) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: kiln.NewBaseExtension("logging"),
		logger:        slog.New(handler),
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *kiln.Operation) (any, error) {
	start := time.Now()
	result, err := next()
	duration := time.Since(start)

	if err != nil {
		e.logger.Error("operation failed",
			"op", string(op.Kind),
			"key", op.Key,
			"duration", duration,
			"error", err,
		)
	} else {
		e.logger.Info("operation completed",
			"op", string(op.Kind),
			"key", op.Key,
			"duration", duration,
		)
	}

	return result, err
}

func (e *LoggingExtension) OnWarning(w kiln.Warning, c *kiln.Container) {
	attrs := []any{
		"kind", string(w.Kind),
		"key", w.Key,
	}
	if w.Dependency != "" {
		attrs = append(attrs, "dependency", w.Dependency)
	}
	if w.Err != nil {
		attrs = append(attrs, "error", w.Err)
	}
	e.logger.Warn("container warning", attrs...)
}
