// Package logger provides the structured logger shared by the monitor service.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

type options struct {
	debug  bool
	format string
	writer io.Writer
	quiet  bool
}

// Option configures NewLogger.
type Option func(*options)

// WithDebug sets the level of the logger to debug.
func WithDebug() Option {
	return func(o *options) { o.debug = true }
}

// WithFormat sets the format of the logger (text or json).
func WithFormat(format string) Option {
	return func(o *options) { o.format = format }
}

// WithWriter adds a second destination, typically a log file.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithQuiet suppresses output to stderr.
func WithQuiet() Option {
	return func(o *options) { o.quiet = true }
}

// NewLogger builds a slog.Logger fanning out to stderr and the optional writer.
func NewLogger(opts ...Option) *slog.Logger {
	cfg := &options{format: "text"}
	for _, opt := range opts {
		opt(cfg)
	}

	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.debug,
	}

	var handlers []slog.Handler
	if !cfg.quiet {
		handlers = append(handlers, newHandler(os.Stderr, cfg.format, handlerOpts))
	}
	if cfg.writer != nil {
		handlers = append(handlers, newHandler(&syncWriter{w: cfg.writer}, cfg.format, handlerOpts))
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// syncWriter serializes writes so concurrent requests do not interleave lines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

var defaultLogger = NewLogger()

type loggerKey struct{}

// WithLogger returns a new context carrying l.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// WithValues returns a context whose logger carries the extra attributes.
func WithValues(ctx context.Context, args ...any) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(args...))
}

// FromContext returns the logger stored in ctx, or the process default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return defaultLogger
}

func Debug(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).DebugContext(ctx, msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).InfoContext(ctx, msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).WarnContext(ctx, msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).ErrorContext(ctx, msg, args...)
}

// Err is the attribute used for error values in log lines.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "")
	}
	return slog.String("err", err.Error())
}
