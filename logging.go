package refs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/go-hclog"
)

// LogLevel is the severity attached to a LogEvent.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// LogEvent describes a step of a resolution run for logging.
type LogEvent struct {
	Level     LogLevel
	Message   string
	RunID     string
	Path      string
	Name      string
	Reference string
	Protocol  Protocol
	Duration  time.Duration
	Err       error
}

// Logger records resolution events.
type Logger interface {
	LogResolution(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogResolution implements Logger.
func (f LoggerFunc) LogResolution(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogResolution(LogEvent) {}

// WithLogger attaches a logger to the Resolver. A nil logger silences it.
func WithLogger(logger Logger) Option {
	return func(cfg *resolverConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// SlogLogger forwards events to a log/slog logger.
func SlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return LoggerFunc(func(event LogEvent) {
		logger.LogAttrs(context.Background(), slogLevel(event.Level), event.Message, slogAttrs(event)...)
	})
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func slogAttrs(event LogEvent) []slog.Attr {
	attrs := make([]slog.Attr, 0, 7)
	if event.RunID != "" {
		attrs = append(attrs, slog.String("run_id", event.RunID))
	}
	if event.Path != "" {
		attrs = append(attrs, slog.String("path", event.Path))
	}
	if event.Name != "" {
		attrs = append(attrs, slog.String("ref", event.Name))
	}
	if event.Reference != "" {
		attrs = append(attrs, slog.String("reference", event.Reference))
	}
	if event.Protocol != "" {
		attrs = append(attrs, slog.String("protocol", string(event.Protocol)))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	return attrs
}

// HCLogLogger forwards events to a go-hclog logger.
func HCLogLogger(logger hclog.Logger) Logger {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return LoggerFunc(func(event LogEvent) {
		args := hclogArgs(event)
		switch event.Level {
		case LevelDebug:
			logger.Debug(event.Message, args...)
		case LevelWarn:
			logger.Warn(event.Message, args...)
		case LevelError:
			logger.Error(event.Message, args...)
		default:
			logger.Info(event.Message, args...)
		}
	})
}

func hclogArgs(event LogEvent) []any {
	attrs := slogAttrs(event)
	args := make([]any, 0, len(attrs)*2)
	for _, attr := range attrs {
		args = append(args, attr.Key, attr.Value.Any())
	}
	return args
}
