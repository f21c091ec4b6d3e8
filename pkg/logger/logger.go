// Package logger provides the process-wide file logger. Runs log through a
// run-scoped wrapper so concurrent runs stay distinguishable in one file.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var (
	globalLogger *log.Logger
	logFile      *os.File
	mu           sync.Mutex
)

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	globalLogger = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds)

	return nil
}

// InitWriter points the global logger at an arbitrary writer. Used by tests
// and by server mode when logging to stderr.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = nil
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	output("[INFO] "+format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	output("[DEBUG] "+format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	output("[ERROR] "+format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	output("[WARN] "+format, v...)
}

func output(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Printf(format, v...)
	}
}

// GetWriter returns the underlying writer for use by drivers.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}

// RunLogger prefixes every line with the owning run's identifier.
type RunLogger struct {
	runID string
}

// ForRun returns a logger scoped to one run.
func ForRun(runID string) *RunLogger {
	return &RunLogger{runID: runID}
}

// Info logs an info message for the run.
func (l *RunLogger) Info(format string, v ...interface{}) {
	output("[INFO] run="+l.runID+" "+format, v...)
}

// Debug logs a debug message for the run.
func (l *RunLogger) Debug(format string, v ...interface{}) {
	output("[DEBUG] run="+l.runID+" "+format, v...)
}

// Warn logs a warning message for the run.
func (l *RunLogger) Warn(format string, v ...interface{}) {
	output("[WARN] run="+l.runID+" "+format, v...)
}

// Error logs an error message for the run.
func (l *RunLogger) Error(format string, v ...interface{}) {
	output("[ERROR] run="+l.runID+" "+format, v...)
}
