package ssf

import (
	"log/slog"
	"sync/atomic"
)

var (
	discard   = slog.New(slog.DiscardHandler)
	pkgLogger atomic.Pointer[slog.Logger]
)

// SetLogger installs the logger used by model constructors. A nil logger
// restores the default, which discards everything.
func SetLogger(l *slog.Logger) {
	pkgLogger.Store(l)
}

// Logger returns the logger installed with SetLogger.
func Logger() *slog.Logger {
	if l := pkgLogger.Load(); l != nil {
		return l
	}
	return discard
}
