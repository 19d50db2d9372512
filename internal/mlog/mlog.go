// Package mlog is a thin wrapper around the standard library's *log.Logger,
// preferring log.Printf/fmt.Errorf wrapping over a structured logging
// framework, with byte and count formatting via go-humanize. Its only
// caller is cmd/canarymapctl.
package mlog

import (
	"log"
	"os"

	"github.com/dustin/go-humanize"
)

// Logger wraps *log.Logger with a few domain-shaped helper methods.
type Logger struct {
	*log.Logger
}

// New returns a Logger writing to os.Stderr with a prefix.
func New(prefix string) *Logger {
	return &Logger{Logger: log.New(os.Stderr, prefix, log.LstdFlags)}
}

// Bytes renders n as a human-readable byte count for a log line.
func (l *Logger) Bytes(n uint64) string { return humanize.Bytes(n) }

// Comma renders n with thousands separators for a log line.
func (l *Logger) Comma(n int64) string { return humanize.Comma(n) }

// Warnf logs a formatted warning line.
func (l *Logger) Warnf(format string, args ...any) { l.Printf("WARN "+format, args...) }

// Errorf logs a formatted error line.
func (l *Logger) Errorf(format string, args ...any) { l.Printf("ERROR "+format, args...) }
