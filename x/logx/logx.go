// Package logx builds the process logger. Everything else takes a
// logr.Logger; only this package knows the sink.
package logx

import "github.com/go-logr/logr"

// Verbosity levels used across the module: 0 lifecycle, 1 diagnostics and
// failures, 2 per-reading detail.
const (
	VInfo   = 0
	VDebug  = 1
	VDetail = 2
)

// Named returns l.WithName(name), or a discarding logger when l has no sink.
func Named(l logr.Logger, name string) logr.Logger {
	if l.GetSink() == nil {
		return logr.Discard()
	}
	return l.WithName(name)
}
