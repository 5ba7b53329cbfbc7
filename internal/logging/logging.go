// Package logging configures zerolog for the tool servers and masks
// credentials before anything reaches a log sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls logger setup.
type Options struct {
	// Name identifies the server in log lines and names the log file.
	Name string
	// Debug lowers the level to debug.
	Debug bool
	// LogDir enables an additional plain-text log file when set.
	LogDir string
}

// Setup installs the global zerolog logger. Console output goes to stderr
// because stdout carries the stdio transport. The returned closer releases
// the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: NewSanitizingWriter(os.Stderr), TimeFormat: time.RFC3339},
	}

	var closer io.Closer = nopCloser{}
	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		path := filepath.Join(opts.LogDir, opts.Name+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        NewSanitizingWriter(f),
			NoColor:    true,
			TimeFormat: time.RFC3339,
		})
		closer = f
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("server", opts.Name).
		Logger()

	return closer, nil
}

// sanitizingWriter applies Sanitize to every formatted log line.
type sanitizingWriter struct {
	w io.Writer
}

// NewSanitizingWriter wraps w so credentials are masked before writing.
func NewSanitizingWriter(w io.Writer) io.Writer {
	return &sanitizingWriter{w: w}
}

func (s *sanitizingWriter) Write(p []byte) (int, error) {
	if _, err := s.w.Write([]byte(Sanitize(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
