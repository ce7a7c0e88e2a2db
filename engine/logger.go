package engine

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with engine-specific context, grounded on the
// teacher's root logger.go (same constructor and With.../Log... names,
// retargeted at the engine's own operations).
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler. If handler is
// nil, uses a default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)})
	return &Logger{Logger: slog.New(handler)}
}

// LogBuild logs a Build operation.
func (l *Logger) LogBuild(ctx context.Context, r, dim int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed", "r", r, "dimension", dim, "error", err)
		return
	}
	l.InfoContext(ctx, "build completed", "r", r, "dimension", dim)
}

// LogAdd logs an Add operation.
func (l *Logger) LogAdd(ctx context.Context, begin, n int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed", "begin", begin, "count", n, "error", err)
		return
	}
	l.DebugContext(ctx, "add completed", "begin", begin, "count", n)
}

// LogDelete logs a Delete operation.
func (l *Logger) LogDelete(ctx context.Context, vid int32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed", "vid", vid, "error", err)
		return
	}
	l.DebugContext(ctx, "delete completed", "vid", vid)
}

// LogSearch logs a Search operation.
func (l *Logger) LogSearch(ctx context.Context, k, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "k", k, "error", err)
		return
	}
	l.DebugContext(ctx, "search completed", "k", k, "found", found)
}

// LogRefine logs a Refine (compaction) operation.
func (l *Logger) LogRefine(ctx context.Context, oldR, newR int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "refine failed", "old_r", oldR, "error", err)
		return
	}
	l.InfoContext(ctx, "refine completed", "old_r", oldR, "new_r", newR)
}

// LogSave logs a Save operation.
func (l *Logger) LogSave(ctx context.Context, dir string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed", "dir", dir, "error", err)
		return
	}
	l.InfoContext(ctx, "save completed", "dir", dir)
}

// LogLoad logs a Load operation.
func (l *Logger) LogLoad(ctx context.Context, dir string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed", "dir", dir, "error", err)
		return
	}
	l.InfoContext(ctx, "load completed", "dir", dir)
}

// LogRebuildTrees logs the background tree-rebuild job.
func (l *Logger) LogRebuildTrees(ctx context.Context, r int, err error) {
	if err != nil {
		l.WarnContext(ctx, "background tree rebuild failed, keeping previous trees", "r", r, "error", err)
		return
	}
	l.InfoContext(ctx, "background tree rebuild completed", "r", r)
}
