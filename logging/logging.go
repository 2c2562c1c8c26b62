// Package logging constructs the process logger. The logger is passed as an
// explicit dependency to every component that reports progress or swallows
// an error; no package keeps a global logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger writing "<ISO8601 ts> <LVL> <message>" lines
// to stderr.
func New() zerolog.Logger {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter is New with an explicit destination, used by tests to
// capture output.
func NewWithWriter(w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	return zerolog.New(cw).With().Timestamp().Logger()
}
