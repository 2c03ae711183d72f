package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tagus/enterprise-agents/pkg/multitenancy"
)

// Logger is the structured logger used by every package in the module
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})
}

// ZeroLogger implements Logger on top of zerolog
type ZeroLogger struct {
	logger zerolog.Logger
}

// Option configures a ZeroLogger
type Option func(*options)

type options struct {
	level     string
	output    io.Writer
	component string
	console   bool
}

// WithLevel sets the minimum level ("debug", "info", "warn", "error")
func WithLevel(level string) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithOutput sets the writer log lines go to
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithComponent adds a fixed "component" field to every line
func WithComponent(name string) Option {
	return func(o *options) {
		o.component = name
	}
}

// WithConsole switches to zerolog's human readable console writer
func WithConsole(enabled bool) Option {
	return func(o *options) {
		o.console = enabled
	}
}

// New creates a new zerolog backed logger. The level defaults to LOG_LEVEL or "info".
func New(opts ...Option) *ZeroLogger {
	o := &options{
		level:  os.Getenv("LOG_LEVEL"),
		output: os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(o.level))
	if err != nil || o.level == "" {
		level = zerolog.InfoLevel
	}

	out := o.output
	if o.console {
		out = zerolog.ConsoleWriter{Out: o.output}
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if o.component != "" {
		zl = zl.With().Str("component", o.component).Logger()
	}

	return &ZeroLogger{logger: zl}
}

// Debug logs a debug message
func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write(ctx, l.logger.Debug(), msg, fields)
}

// Info logs an info message
func (l *ZeroLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write(ctx, l.logger.Info(), msg, fields)
}

// Warn logs a warning message
func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write(ctx, l.logger.Warn(), msg, fields)
}

// Error logs an error message
func (l *ZeroLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write(ctx, l.logger.Error(), msg, fields)
}

func (l *ZeroLogger) write(ctx context.Context, event *zerolog.Event, msg string, fields map[string]interface{}) {
	if event == nil {
		return
	}
	if ctx != nil {
		if orgID, err := multitenancy.GetOrgID(ctx); err == nil {
			event = event.Str("org_id", orgID)
		}
	}
	if len(fields) > 0 {
		event = event.Fields(fields)
	}
	event.Msg(msg)
}

// NoopLogger discards everything, handy in tests
type NoopLogger struct{}

// NewNoop returns a logger that drops all output
func NewNoop() NoopLogger { return NoopLogger{} }

func (NoopLogger) Debug(context.Context, string, map[string]interface{}) {}
func (NoopLogger) Info(context.Context, string, map[string]interface{})  {}
func (NoopLogger) Warn(context.Context, string, map[string]interface{})  {}
func (NoopLogger) Error(context.Context, string, map[string]interface{}) {}
