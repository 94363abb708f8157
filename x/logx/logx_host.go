//go:build !(rp2040 || rp2350)

package logx

import (
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New logs JSON lines to w, or a console format when w is a terminal.
// verbosity enables V(n) for n <= verbosity.
func New(w io.Writer, verbosity int) logr.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"
	zerologr.SetMaxV(verbosity)

	zl := zerolog.New(w)
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		zl = zl.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}
	lvl := zerolog.InfoLevel - zerolog.Level(verbosity)
	zerolog.SetGlobalLevel(lvl)
	zl = zl.Level(lvl).With().Timestamp().Logger()
	return zerologr.New(&zl)
}

// Stderr is New(os.Stderr, verbosity).
func Stderr(verbosity int) logr.Logger { return New(os.Stderr, verbosity) }
