package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the process logger.
//   - level: trace, debug, info, warn, error, fatal, panic (unknown → info)
//   - format: "pretty" for console output, anything else emits JSON lines
//
// Every entry carries the service name so proctor and sweeper logs can be
// told apart from other processes shipping to the same sink.
func Setup(level, format string) zerolog.Logger {
	var writer io.Writer = os.Stdout

	if format == "pretty" {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(writer).
		With().
		Timestamp().
		Str("service", "exstem-proctor").
		Caller().
		Logger()
}
