package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

// currentLevel holds the current global log level atomically.
var currentLevel atomic.Uint32

// logger is the standard logger instance used internally.
// Date, time with microseconds: tick timing is visible in the output.
var logger = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output. The terminal UI sends logs to a file so
// they do not tear the alternate screen.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// shouldLog checks if a message at the given level should be logged based on the current global level.
func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

func output(level LogLevel, prefix, msg string) {
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	// Keep the level column aligned: DEBUG/ERROR/FATAL are five characters.
	pad := " "
	if len(level.String()) == 4 {
		pad = "  "
	}
	_ = logger.Output(3, "["+level.String()+"]"+pad+msg)
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...interface{}) {
	if shouldLog(LevelDebug) {
		output(LevelDebug, "", fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...interface{}) {
	if shouldLog(LevelInfo) {
		output(LevelInfo, "", fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...interface{}) {
	if shouldLog(LevelWarn) {
		output(LevelWarn, "", fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...interface{}) {
	if shouldLog(LevelError) {
		output(LevelError, "", fmt.Sprintf(format, v...))
	}
}

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...interface{}) {
	output(LevelFatal, "", fmt.Sprintf(format, v...))
	os.Exit(1)
}

// --- Component loggers ---

// Logger prefixes every message with a component name, e.g.
//
//	[INFO]  pipeline: started (frame 2048, interval 20ms)
//
// It shares the global level and output.
type Logger struct {
	name string
}

// Named returns a Logger for the given component.
func Named(name string) Logger {
	return Logger{name: name}
}

// Name returns the component name.
func (l Logger) Name() string { return l.name }

// Debugf logs a formatted debug message for the component.
func (l Logger) Debugf(format string, v ...interface{}) {
	if shouldLog(LevelDebug) {
		output(LevelDebug, l.name, fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info message for the component.
func (l Logger) Infof(format string, v ...interface{}) {
	if shouldLog(LevelInfo) {
		output(LevelInfo, l.name, fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message for the component.
func (l Logger) Warnf(format string, v ...interface{}) {
	if shouldLog(LevelWarn) {
		output(LevelWarn, l.name, fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message for the component.
func (l Logger) Errorf(format string, v ...interface{}) {
	if shouldLog(LevelError) {
		output(LevelError, l.name, fmt.Sprintf(format, v...))
	}
}
