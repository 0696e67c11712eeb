package logging

import (
	"io"
	"os"
	"sync"
)

var (
	globalLogger = New(Config{Level: LevelInfo, Format: FormatJSON})
	globalMu     sync.RWMutex
)

// SetGlobal sets the global logger.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Global returns the global logger.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Configure builds a logger writing to stderr from level and format names
// and installs it as the global logger. Caller info is added at debug level.
func Configure(level, format string) (*Logger, error) {
	return ConfigureOutput(os.Stderr, level, format)
}

// ConfigureOutput is Configure with an explicit writer.
func ConfigureOutput(w io.Writer, level, format string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	l := New(Config{Level: lvl, Format: f, Output: w, AddCaller: lvl == LevelDebug})
	SetGlobal(l)
	return l, nil
}

// Infof logs to the global logger.
func Infof(msg string, fields map[string]any) { Global().Infof(msg, fields) }

// Warnf logs to the global logger.
func Warnf(msg string, fields map[string]any) { Global().Warnf(msg, fields) }

// Errorf logs to the global logger.
func Errorf(msg string, fields map[string]any) { Global().Errorf(msg, fields) }
