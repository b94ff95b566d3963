// Package logging builds the process logger: JSON lines on stdout, optionally
// tee'd into a size-rotated file.
package logging

import (
	"io"
	"log/slog"
	"os"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New. File is optional.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a JSON logger and a closer for the rotated file. The closer is
// a no-op when no file is configured.
func New(stdout io.Writer, opts Options) (*slog.Logger, io.Closer) {
	if stdout == nil {
		stdout = os.Stdout
	}

	out := stdout
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(stdout, lj)
		closer = lj
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	}))
	return logger, closer
}

// ParseLevel maps debug|info|warn|error to a slog level. Anything else is
// info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
