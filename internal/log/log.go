// Package log provides structured, colored logging for the address book.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers for different parts of the system.
var (
	AddrBook  zerolog.Logger
	Discovery zerolog.Logger
	Seed      zerolog.Logger
	Storage   zerolog.Logger
	Node      zerolog.Logger
)

func init() {
	Logger = NewConsoleLogger(os.Stderr, "info")
	initComponentLoggers()
}

// Init initializes the logger with the given configuration.
// When file is non-empty, logs go to both the console (colored or JSON
// depending on jsonOutput) and the file (always JSON).
func Init(level string, jsonOutput bool, file string) error {
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}

		var consoleWriter io.Writer
		if jsonOutput {
			consoleWriter = os.Stderr
		} else {
			consoleWriter = zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: "15:04:05",
			}
		}

		multi := zerolog.MultiLevelWriter(consoleWriter, f)
		Logger = zerolog.New(multi).
			Level(ParseLevel(level)).
			With().
			Timestamp().
			Logger()
	} else if jsonOutput {
		Logger = NewJSONLogger(os.Stderr, level)
	} else {
		Logger = NewConsoleLogger(os.Stderr, level)
	}

	initComponentLoggers()
	return nil
}

// SetOutput replaces the global logger with a JSON logger writing to w.
// Tests use it to capture or silence output.
func SetOutput(w io.Writer, level string) {
	Logger = NewJSONLogger(w, level)
	initComponentLoggers()
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}
	return zerolog.New(output).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// NewJSONLogger creates a structured JSON logger.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts a string level to zerolog.Level. Unknown values map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether level is one ParseLevel understands.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "trace", "debug", "info", "warn", "error":
		return true
	}
	return false
}

func initComponentLoggers() {
	AddrBook = WithComponent("addrbook")
	Discovery = WithComponent("discovery")
	Seed = WithComponent("seed")
	Storage = WithComponent("storage")
	Node = WithComponent("node")
}

// WithComponent returns a logger with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
