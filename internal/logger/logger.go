// Package logger builds the charmbracelet/log loggers used by the resin
// command, with an optional size-rotated log file.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level      string    // debug, info, warn or error
	Console    io.Writer // defaults to stderr; io.Discard silences it
	File       string    // rotated log file, empty for none
	MaxSize    int       // megabytes before rotation
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultOptions returns info level console logging and the rotation
// limits used when a log file is given.
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}
}

// New returns a logger writing to the console and, when File is set, to a
// rotated file. The returned closer releases the file and is never nil.
func New(o Options) (*log.Logger, io.Closer) {
	var w io.Writer = os.Stderr
	if o.Console != nil {
		w = o.Console
	}
	var closer io.Closer = nopCloser{}
	if o.File != "" {
		lj := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSize,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAge,
			Compress:   o.Compress,
			LocalTime:  true,
		}
		w = io.MultiWriter(w, lj)
		closer = lj
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           ParseLevel(o.Level),
	}), closer
}

// ParseLevel maps a level name to a log level; unknown names give info.
func ParseLevel(s string) log.Level {
	switch strings.ToLower(s) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type ctxKey int

const loggerKey ctxKey = 0

// WithLogger returns a context carrying l.
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or log.Default().
func FromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
