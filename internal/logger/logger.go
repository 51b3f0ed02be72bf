// Package logger holds the process-wide zap logger used by every stage of a
// build. Console output is human readable; the optional log file receives
// JSON lines rotated by lumberjack.
package logger

import (
	"os"
	"sync"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the global logger is built.
type Options struct {
	Debug   bool
	LogFile string // empty disables file output

	// Rotation settings for LogFile. Zero values pick the defaults below.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const (
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 5
	defaultMaxAgeDays = 30
)

var (
	mu   sync.Mutex
	log  *zap.Logger
	once sync.Once
)

// Init initializes the global logger with console output only
func Init(debug bool) {
	Configure(Options{Debug: debug})
}

// InitWithFile initializes the global logger with both console and file output
func InitWithFile(debug bool, logFile string) {
	Configure(Options{Debug: debug, LogFile: logFile})
}

// Configure builds the global logger once. Later calls are ignored.
func Configure(opts Options) {
	once.Do(func() {
		Set(New(opts))
	})
}

// New builds a logger without touching the global one.
func New(opts Options) *zap.Logger {
	level := zapcore.InfoLevel
	encoderConfig := zap.NewProductionEncoderConfig()
	if opts.Debug {
		level = zapcore.DebugLevel
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), level),
	}

	if opts.LogFile != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   opts.LogFile,
				MaxSize:    orDefault(opts.MaxSizeMB, defaultMaxSizeMB),
				MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
				MaxAge:     orDefault(opts.MaxAgeDays, defaultMaxAgeDays),
			}),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.ErrorLevel))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Set replaces the global logger. Tests use it to capture output.
func Set(l *zap.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()
}

// Get returns the global logger
func Get() *zap.Logger {
	mu.Lock()
	l := log
	mu.Unlock()
	if l == nil {
		Init(false)
		mu.Lock()
		l = log
		mu.Unlock()
	}
	return l
}

// Sync flushes any buffered log entries
func Sync() {
	mu.Lock()
	l := log
	mu.Unlock()
	if l != nil {
		_ = l.Sync()
	}
}
