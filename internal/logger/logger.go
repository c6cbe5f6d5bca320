package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog behind the component-tagged event API used across
// the pipeline. The zero value discards nothing safely; construct with
// New, NewConsole or Nop.
type Logger struct {
	zl zerolog.Logger
}

func New(w io.Writer, level zerolog.Level) Logger {
	zl := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()

	return Logger{zl: zl}
}

// NewConsole returns a logger writing human-readable output to stderr,
// suitable for the CLI.
func NewConsole(level zerolog.Level) Logger {
	return New(zerolog.ConsoleWriter{Out: os.Stderr}, level)
}

// Nop returns a logger that discards every event.
func Nop() Logger {
	return Logger{zl: zerolog.Nop()}
}

func (l Logger) Debug(component, message string, fields map[string]interface{}) {
	event := l.zl.Debug().Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (l Logger) Info(component, message string, fields map[string]interface{}) {
	event := l.zl.Info().Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (l Logger) Warning(component, message string, fields map[string]interface{}) {
	event := l.zl.Warn().Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (l Logger) Error(component string, err error, fields map[string]interface{}) {
	event := l.zl.Error().Str("component", component).Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg("operation failed")
}

// ParseLevel maps a CLI level string onto a zerolog level. Unknown
// strings fall back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
