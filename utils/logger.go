package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger provides logging functionality
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	logger *log.Logger
	echo   io.Writer
	debug  bool
}

// NewLogger creates a new logger writing to logPath and echoing to stdout
func NewLogger(logPath string) (*Logger, error) {
	// Ensure directory exists
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		file:   file,
		logger: log.New(file, "", log.LstdFlags),
		echo:   os.Stdout,
	}, nil
}

// NewWriterLogger creates a logger that writes only to w
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{logger: log.New(w, "", log.LstdFlags)}
}

// NewDiscardLogger creates a logger that drops everything; handy in tests
func NewDiscardLogger() *Logger {
	return NewWriterLogger(io.Discard)
}

// SetDebug toggles Debug output
func (l *Logger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

// Close closes the logger
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) write(level, format string, v ...interface{}) {
	msg := fmt.Sprintf("["+level+"] "+format, v...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Println(msg)
	if l.echo != nil {
		fmt.Fprintln(l.echo, msg)
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.write("INFO", format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.write("ERROR", format, v...)
}

// Debug logs a debug message when debug output is enabled
func (l *Logger) Debug(format string, v ...interface{}) {
	l.mu.Lock()
	enabled := l.debug
	l.mu.Unlock()
	if !enabled {
		return
	}
	l.write("DEBUG", format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.write("WARN", format, v...)
}

// GetLogPath returns the default log path
func GetLogPath() string {
	return filepath.Join(".", "logs", fmt.Sprintf("chat-widget-%s.log", time.Now().Format("2006-01-02")))
}
