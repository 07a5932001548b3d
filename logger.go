package imagesift

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with engine-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDataset adds a dataset field to the logger.
func (l *Logger) WithDataset(datasetID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", datasetID),
	}
}

// WithClass adds a class field to the logger.
func (l *Logger) WithClass(className string) *Logger {
	return &Logger{
		Logger: l.Logger.With("class", className),
	}
}

// LogImageFailure logs a per-image ingestion failure.
func (l *Logger) LogImageFailure(ctx context.Context, datasetID, className, imageID string, err error) {
	l.WarnContext(ctx, "image skipped",
		"dataset", datasetID,
		"class", className,
		"image", imageID,
		"error", err,
	)
}

// LogIngest logs the outcome of a dataset ingestion run.
func (l *Logger) LogIngest(ctx context.Context, datasetID string, created, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "ingestion completed with failures",
			"dataset", datasetID,
			"created", created,
			"failed", failed,
		)
	} else {
		l.InfoContext(ctx, "ingestion completed",
			"dataset", datasetID,
			"created", created,
		)
	}
}

// LogSearch logs a similarity search.
func (l *Logger) LogSearch(ctx context.Context, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"results", found,
		)
	}
}

// LogDelete logs a logical deletion.
func (l *Logger) LogDelete(ctx context.Context, datasetID, imageID string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"dataset", datasetID,
			"image", imageID,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"dataset", datasetID,
			"image", imageID,
		)
	}
}
