package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is a slog.Logger that stamps every record with its component.
type Logger struct {
	*slog.Logger
	component string
	// base holds every attribute except the component.
	base *slog.Logger
}

type Config struct {
	Level     slog.Level
	Component string
	// JSON switches the default handler from text to JSON.
	JSON   bool
	Output io.Writer
	// Handler overrides the fields above when set.
	Handler slog.Handler
}

func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, Component: ComponentApp, Output: os.Stdout}
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		if config.JSON {
			handler = slog.NewJSONHandler(out, opts)
		} else {
			handler = slog.NewTextHandler(out, opts)
		}
	}
	component := config.Component
	if component == "" {
		component = ComponentApp
	}
	return newWithBase(slog.New(handler), component)
}

func newWithBase(base *slog.Logger, component string) *Logger {
	return &Logger{Logger: base.With(FieldComponent, component), component: component, base: base}
}

// With returns a logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	return newWithBase(l.baseLogger().With(args...), l.component)
}

// WithComponent derives a logger for a sub component. The component
// attribute is replaced rather than repeated.
func (l *Logger) WithComponent(component string) *Logger {
	return newWithBase(l.baseLogger(), component)
}

func (l *Logger) baseLogger() *slog.Logger {
	if l.base != nil {
		return l.base
	}
	return l.Logger
}

func (l *Logger) Component() string {
	return l.component
}

// Fields logs msg at level with a field set.
func (l *Logger) Fields(ctx context.Context, level slog.Level, msg string, f LogFields) {
	l.Logger.Log(ctx, level, msg, f.ToSlice()...)
}

func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
