package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base    = zap.NewNop()
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logFile *os.File
	mu      sync.Mutex
)

// Init initializes the global logger. An empty path logs to stderr.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	var ws zapcore.WriteSyncer
	if logPath == "" {
		ws = zapcore.Lock(os.Stderr)
	} else {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = f
		ws = zapcore.AddSync(f)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	base = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, level))
	return nil
}

// SetVerbose switches between debug and info level.
func SetVerbose(verbose bool) {
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	base = zap.NewNop()
}

func closeLocked() {
	_ = base.Sync()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Named returns a structured logger for one component.
func Named(component string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return base.Named(component).Sugar()
}

func sugar() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return base.Sugar()
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	sugar().Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	sugar().Debugf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	sugar().Errorf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	sugar().Warnf(format, v...)
}

// GetWriter returns the log file for subprocess output, or io.Discard.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
