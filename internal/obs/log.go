package obs

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogging configures the global zerolog logger. Format "text" writes a
// console-friendly stream; anything else emits JSON lines to stdout.
func InitLogging(level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		return
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Logger returns the shared global logger.
func Logger() *zerolog.Logger {
	return &log.Logger
}
