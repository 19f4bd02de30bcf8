package observable

import (
	"context"
	"log/slog"
	"time"
)

// LogEvent describes one loggable occurrence inside the proxy graph.
type LogEvent struct {
	// Op names the operation: "evaluate", "install", "resolve" or "activity".
	Op       string
	Engine   string
	Expr     string
	Owner    string
	Path     string
	Duration time.Duration
	Err      error
}

// EventLogger records proxy and dependency engine events.
type EventLogger interface {
	LogEvent(LogEvent)
}

// EventLoggerFunc adapts a function to EventLogger.
type EventLoggerFunc func(LogEvent)

// LogEvent implements EventLogger.
func (f EventLoggerFunc) LogEvent(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEventLogger struct{}

func (noopEventLogger) LogEvent(LogEvent) {}

// WithLogger attaches an event logger to proxies and hosts.
func WithLogger(logger EventLogger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopEventLogger{}
			return
		}
		cfg.logger = logger
	}
}

// SlogLogger writes events to logger. Failures log at warn level, everything
// else at debug.
func SlogLogger(logger *slog.Logger) EventLogger {
	if logger == nil {
		return noopEventLogger{}
	}
	return slogEventLogger{logger: logger}
}

type slogEventLogger struct {
	logger *slog.Logger
}

func (l slogEventLogger) LogEvent(event LogEvent) {
	attrs := []slog.Attr{slog.String("op", event.Op)}
	if event.Engine != "" {
		attrs = append(attrs, slog.String("engine", event.Engine))
	}
	if event.Expr != "" {
		attrs = append(attrs, slog.String("expr", event.Expr))
	}
	if event.Owner != "" {
		attrs = append(attrs, slog.String("owner", event.Owner))
	}
	if event.Path != "" {
		attrs = append(attrs, slog.String("path", event.Path))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	level := slog.LevelDebug
	msg := "observable " + event.Op
	if event.Err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
