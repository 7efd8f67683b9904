// Package logging provides leveled stderr logging with secret redaction.
// Resolved secret values must never reach a log line; wrap them in Secret
// or scrub messages with Redact before logging.
package logging

import (
	"fmt"
	"os"
	"strings"
)

// Logger writes human-oriented diagnostics to stderr.
type Logger struct {
	debug   bool
	noColor bool
}

// New creates a logger. With debug=false, Debug lines are dropped.
func New(debug, noColor bool) *Logger {
	return &Logger{debug: debug, noColor: noColor}
}

func (l *Logger) emit(color, glyph, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.noColor {
		fmt.Fprintf(os.Stderr, "%s %s\n", glyph, msg)
		return
	}
	fmt.Fprintf(os.Stderr, "\033[%sm%s\033[0m %s\n", color, glyph, msg)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit("32", "✓", format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit("33", "⚠", format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit("31", "✗", format, args...)
}

// Debug logs a message only when debug mode is enabled.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.emit("36", "[DEBUG]", format, args...)
}

// Secret wraps a sensitive value so any formatting verb renders [REDACTED].
type Secret string

func (s Secret) String() string   { return "[REDACTED]" }
func (s Secret) GoString() string { return "[REDACTED]" }

// Redact replaces occurrences of the given secret values in s.
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		// Very short values would redact innocent substrings.
		if len(secret) > 3 {
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
