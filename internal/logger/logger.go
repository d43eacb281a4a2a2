package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup returns the process logger. Debug mode switches to a console writer.
func Setup(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	if debug {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Caller().Logger()
	}

	return logger
}

// MaskIdentifier masks a phone number or email for logging (e.g., +9*******99)
func MaskIdentifier(id string) string {
	r := []rune(id)
	if len(r) <= 4 {
		return "****"
	}

	return string(r[:2]) + strings.Repeat("*", len(r)-4) + string(r[len(r)-2:])
}
