// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log destinations.
type Options struct {
	// Debug lowers the global level to debug.
	Debug bool
	// File, if set, receives JSON logs rotated by size.
	File string
	// MaxSizeMB is the rotation size of File.
	MaxSizeMB int
	// MaxBackups is how many rotated files are kept.
	MaxBackups int
	// Console receives human-readable logs. Nil means stderr; use io.Discard to silence it.
	Console io.Writer
}

// Init replaces the global logger. The returned closer flushes the log file.
func Init(opts Options) (io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    max(opts.MaxSizeMB, 1),
			MaxBackups: max(opts.MaxBackups, 1),
		}
		writers = append(writers, lj)
		closer = lj
	}

	log.Logger = log.Output(io.MultiWriter(writers...)).
		With().Timestamp().Caller().Logger()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
