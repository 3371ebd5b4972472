package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	SILENT // No logging
)

var levelNames = map[LogLevel]string{
	DEBUG:  "DEBUG",
	INFO:   "INFO",
	WARN:   "WARN",
	ERROR:  "ERROR",
	SILENT: "SILENT",
}

// zapLevel maps a LogLevel onto zap. SILENT sits above every level zap can emit.
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel + 1
	}
}

// Logger provides leveled logging with module support
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	atom    zap.AtomicLevel
	base    *zap.Logger
	modules map[string]*zap.SugaredLogger
}

var defaultLogger *Logger
var once sync.Once

// Init initializes the global logger (call once at startup)
func Init(level LogLevel, output io.Writer, useColor bool) {
	once.Do(func() {
		defaultLogger = New(level, output, useColor)
	})
}

// New creates a new Logger instance writing console-formatted lines to output
func New(level LogLevel, output io.Writer, useColor bool) *Logger {
	if output == nil {
		output = os.Stderr
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if useColor {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encCfg.CallerKey = ""
	encCfg.StacktraceKey = ""

	atom := zap.NewAtomicLevelAt(level.zapLevel())
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(output), atom)

	return &Logger{
		level:   level,
		atom:    atom,
		base:    zap.New(core),
		modules: make(map[string]*zap.SugaredLogger),
	}
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.atom.SetLevel(level.zapLevel())
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Zap returns the underlying zap logger, for libraries that take one.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

func (l *Logger) module(name string) *zap.SugaredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.modules[name]
	if !ok {
		base := l.base
		if name != "" {
			base = base.Named(name)
		}
		s = base.Sugar()
		l.modules[name] = s
	}
	return s
}

// Debug logs a debug message
func (l *Logger) Debug(module string, format string, args ...interface{}) {
	if l.atom.Enabled(zapcore.DebugLevel) {
		l.module(module).Debugf(format, args...)
	}
}

// Info logs an info message
func (l *Logger) Info(module string, format string, args ...interface{}) {
	if l.atom.Enabled(zapcore.InfoLevel) {
		l.module(module).Infof(format, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(module string, format string, args ...interface{}) {
	if l.atom.Enabled(zapcore.WarnLevel) {
		l.module(module).Warnf(format, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(module string, format string, args ...interface{}) {
	if l.atom.Enabled(zapcore.ErrorLevel) {
		l.module(module).Errorf(format, args...)
	}
}

// Global logger functions (use default logger)

// SetLevel sets the global log level
func SetLevel(level LogLevel) {
	if defaultLogger != nil {
		defaultLogger.SetLevel(level)
	}
}

// GetLevel returns the global log level
func GetLevel() LogLevel {
	if defaultLogger != nil {
		return defaultLogger.GetLevel()
	}
	return INFO
}

// Sync flushes the global logger.
func Sync() {
	if defaultLogger != nil {
		_ = defaultLogger.Sync()
	}
}

// Debug logs a debug message using the global logger
func Debug(module string, format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Debug(module, format, args...)
	}
}

// Info logs an info message using the global logger
func Info(module string, format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Info(module, format, args...)
	}
}

// Warn logs a warning message using the global logger
func Warn(module string, format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Warn(module, format, args...)
	}
}

// Error logs an error message using the global logger
func Error(module string, format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Error(module, format, args...)
	}
}

// ParseLevel parses a log level string
func ParseLevel(s string) (LogLevel, error) {
	switch s {
	case "debug", "DEBUG":
		return DEBUG, nil
	case "info", "INFO":
		return INFO, nil
	case "warn", "WARN", "warning", "WARNING":
		return WARN, nil
	case "error", "ERROR":
		return ERROR, nil
	case "silent", "SILENT", "none", "NONE":
		return SILENT, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s", s)
	}
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}
