package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelOff
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LogLevelDebug, nil
	case "INFO":
		return LogLevelInfo, nil
	case "WARN", "WARNING":
		return LogLevelWarn, nil
	case "ERROR":
		return LogLevelError, nil
	case "OFF", "NONE":
		return LogLevelOff, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// Logger is a minimal leveled logger shared by all plotview packages. Stream
// errors are frequent and non-fatal here, so the level gate matters more than
// structure.
type Logger struct {
	level  LogLevel
	logger *log.Logger
	mu     sync.RWMutex
}

// NewLogger creates a new logger instance
func NewLogger(output io.Writer, level LogLevel) *Logger {
	return &Logger{
		level:  level,
		logger: log.New(output, "", log.LstdFlags),
	}
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) log(level LogLevel, format string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if level < l.level {
		return
	}
	l.logger.Printf("[%s] %s", level.String(), fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) { l.log(LogLevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LogLevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LogLevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LogLevelError, format, args...) }

var globalLogger = NewLogger(os.Stderr, LogLevelInfo)

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	globalLogger.SetLevel(level)
}

// GetLogLevel returns the current global log level
func GetLogLevel() LogLevel {
	return globalLogger.GetLevel()
}

// Package-level convenience functions using the global logger

func Debug(format string, args ...any) { globalLogger.Debug(format, args...) }
func Info(format string, args ...any)  { globalLogger.Info(format, args...) }
func Warn(format string, args ...any)  { globalLogger.Warn(format, args...) }
func Error(format string, args ...any) { globalLogger.Error(format, args...) }

func init() {
	if levelStr := os.Getenv("PLOTVIEW_LOG_LEVEL"); levelStr != "" {
		if level, err := ParseLogLevel(levelStr); err == nil {
			SetLogLevel(level)
		}
	}

	// In test mode, default to ERROR level only
	if strings.HasSuffix(os.Args[0], ".test") {
		SetLogLevel(LogLevelError)
	}
}
