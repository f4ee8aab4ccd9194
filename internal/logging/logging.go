package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger *zerolog.Logger
)

// Init initializes the global structured logger writing to stderr.
func Init(level string) {
	InitWithWriter(level, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

// InitWithWriter initializes the global logger with a custom writer.
func InitWithWriter(level string, w io.Writer) {
	l := zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(level))

	mu.Lock()
	logger = &l
	mu.Unlock()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the global logger instance.
func Logger() *zerolog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l == nil {
		Init("info")
		return Logger()
	}
	return l
}

// Debug logs a debug message with key/value pairs.
func Debug(msg string, args ...any) {
	Logger().Debug().Fields(args).Msg(msg)
}

// Info logs an info message with key/value pairs.
func Info(msg string, args ...any) {
	Logger().Info().Fields(args).Msg(msg)
}

// Warn logs a warning message with key/value pairs.
func Warn(msg string, args ...any) {
	Logger().Warn().Fields(args).Msg(msg)
}

// Error logs an error message with key/value pairs.
func Error(msg string, args ...any) {
	Logger().Error().Fields(args).Msg(msg)
}
