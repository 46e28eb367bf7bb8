package monitoring

import (
	"fmt"
	"log"

	"github.com/rs/zerolog"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// ZerologLogf adapts a zerolog logger to the Logf signature. Messages are
// written at info level with the given component attached.
func ZerologLogf(logger zerolog.Logger, component string) func(format string, v ...interface{}) {
	l := logger.With().Str("component", component).Logger()
	return func(format string, v ...interface{}) {
		l.Info().Msg(fmt.Sprintf(format, v...))
	}
}
