package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger created with New or NewFile.
type Option func(*config)

// WithDebug lowers the level to Debug, which also emits per-batch timings.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
			return
		}
		c.level = slog.LevelInfo
	}
}

func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithWriter sets the destination. A nil writer keeps the default.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.w = w
		}
	}
}

// WithComponent tags every record with component=name.
func WithComponent(name string) Option {
	return func(c *config) {
		c.component = name
	}
}

// WithCaller reports the calling file and line.
func WithCaller(caller bool) Option {
	return func(c *config) {
		c.caller = caller
	}
}
