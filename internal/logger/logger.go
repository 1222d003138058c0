package logger

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var (
	currentLevel atomic.Int32
	logger       = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// SetLevel sets the logging level
func SetLevel(level Level) {
	currentLevel.Store(int32(level))
}

// SetOutput перенаправляет вывод логгера (используется в тестах)
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func enabled(level Level) bool {
	return Level(currentLevel.Load()) >= level
}

// Debug logs a debug message with component prefix
func Debug(component, format string, v ...interface{}) {
	if enabled(LevelDebug) {
		logger.Printf("[DEBUG] [%s] "+format, append([]interface{}{component}, v...)...)
	}
}

// Info logs an info message with component prefix
func Info(component, format string, v ...interface{}) {
	if enabled(LevelInfo) {
		logger.Printf("[INFO] [%s] "+format, append([]interface{}{component}, v...)...)
	}
}

// Warn logs a warning message with component prefix
func Warn(component, format string, v ...interface{}) {
	if enabled(LevelWarn) {
		logger.Printf("[WARN] [%s] "+format, append([]interface{}{component}, v...)...)
	}
}

// Error logs an error message with component prefix
func Error(component, format string, v ...interface{}) {
	if enabled(LevelError) {
		logger.Printf("[ERROR] [%s] "+format, append([]interface{}{component}, v...)...)
	}
}
