// Package logging provides subsystem-tagged log helpers.
package logging

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
)

var debugEnabled atomic.Bool

func init() {
	debugEnabled.Store(os.Getenv("WIP_DEBUG") == "true")
}

// SetDebug toggles debug output (the CLI wires this to --verbose).
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

// DebugEnabled reports whether Debug lines are printed.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// Info logs an informational message (always shown)
func Info(subsystem, format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
}

// Debug logs a debug message (only shown if WIP_DEBUG=true or --verbose)
func Debug(subsystem, format string, args ...any) {
	if debugEnabled.Load() {
		log.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
	}
}

// New returns a *log.Logger prefixed with the subsystem tag, for components
// that take a logger option.
func New(subsystem string) *log.Logger {
	return log.New(log.Writer(), "["+subsystem+"] ", log.LstdFlags)
}

// Truncate shortens s to maxLen for one-line logs.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
