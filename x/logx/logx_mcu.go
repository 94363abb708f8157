//go:build rp2040 || rp2350

package logx

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// Stderr logs to the console with println; there is no stderr on the MCU.
func Stderr(verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			println(prefix, args)
			return
		}
		println(args)
	}, funcr.Options{Verbosity: verbosity})
}
