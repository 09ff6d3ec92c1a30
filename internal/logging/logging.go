// Package logging gives the components that log (engine, worker,
// netio, and the server command) their own named, structured logger, built
// on github.com/luxfi/log the way the teacher's own log/compat.go
// wraps that same library for go-ethereum-style call sites — except
// here there is no compatibility shim to carry: this engine calls
// luxfi/log directly.
package logging

import (
	"log/slog"

	luxlog "github.com/luxfi/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Named returns a logger tagged with "component"=name, so log lines are
// attributable at a glance.
func Named(name string) luxlog.Logger {
	return luxlog.Root().With("component", name)
}

// NewRotatingDiagnosticLog returns a size-rotated structured logger for
// operational diagnostics server mode writes alongside the redo stream
// (engine startup failure, replay start, completion and failure, and
// shutdown) —
// independent of the event log itself, which must never be touched by
// anything other than internal/elog. Grounded in the teacher's own use
// of gopkg.in/natefinch/lumberjack.v2 for rotated node logs, built on
// slog the way luxfi/log's own Logger is (per its Handler() method).
func NewRotatingDiagnosticLog(path string) *slog.Logger {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	return slog.New(slog.NewTextHandler(rotator, nil))
}
