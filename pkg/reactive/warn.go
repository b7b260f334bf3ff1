package reactive

import (
	"log/slog"
	"sync"
)

// DebugMode enables development-time diagnostics for invalid operations,
// such as wrapping a non-composite value. Warnings that guard correctness
// (readonly writes) are emitted regardless of this flag.
//
// Set this at application startup and do not change it at runtime.
var DebugMode = false

var (
	loggerMu sync.RWMutex
	logger   = slog.Default()
)

// SetLogger replaces the diagnostic logger for the package.
// Passing nil restores slog.Default().
func SetLogger(l *slog.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		l = slog.Default()
	}
	logger = l
}

// warn emits a usage diagnostic. Warnings never fail the operation that
// raised them; the caller falls back to a safe no-op behavior.
func warn(msg string, args ...any) {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	l.Warn("reflow: "+msg, args...)
}

// debug emits a diagnostic only when DebugMode is enabled.
func debug(msg string, args ...any) {
	if !DebugMode {
		return
	}
	warn(msg, args...)
}
