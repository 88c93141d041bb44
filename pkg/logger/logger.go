// Package logger builds the *slog.Logger values used across wembed.
//
// Commands log to stderr through the charmbracelet/log handler; the server
// can additionally append JSON records to a file.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Format selects the handler a logger renders records with.
type Format int

const (
	// FormatText is slog's key=value text handler.
	FormatText Format = iota
	// FormatPretty is the colorized charmbracelet/log handler.
	FormatPretty
	// FormatJSON is slog's JSON handler, one object per line.
	FormatJSON
)

// String returns the flag spelling of f.
func (f Format) String() string {
	switch f {
	case FormatPretty:
		return "pretty"
	case FormatJSON:
		return "json"
	default:
		return "text"
	}
}

// ParseFormat maps "text", "pretty" or "json" to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "":
		return FormatText, nil
	case "pretty":
		return FormatPretty, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format %q", s)
}

type config struct {
	level     slog.Level
	format    Format
	caller    bool
	w         io.Writer
	component string
}

// New creates a logger from opts. Without options it writes text records at
// Info level to os.Stderr.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level: slog.LevelInfo,
		w:     os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}

	l := slog.New(c.handler())
	if c.component != "" {
		l = l.With("component", c.component)
	}
	return l
}

func (c *config) handler() slog.Handler {
	switch c.format {
	case FormatPretty:
		return charmlog.NewWithOptions(c.w, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			ReportCaller:    c.caller,
		})
	case FormatJSON:
		return slog.NewJSONHandler(c.w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.caller,
		})
	default:
		return slog.NewTextHandler(c.w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.caller,
		})
	}
}

// NewFile appends JSON records to the file at path, creating it if needed.
// Any writer or format option in opts is overridden. The returned func closes
// the file.
func NewFile(path string, opts ...Option) (*slog.Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	opts = append(opts, WithFormat(FormatJSON), WithWriter(f))
	return New(opts...), f.Close, nil
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
