package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger *zap.SugaredLogger
)

func init() {
	logger = build(false)
}

// build creates the root logger. Debug mode uses the human-readable
// console encoder, otherwise lines are JSON for log shippers.
func build(debug bool) *zap.SugaredLogger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.Level = level
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Configure switches between console (debug) and JSON output.
func Configure(debug bool) {
	mu.Lock()
	defer mu.Unlock()
	logger = build(debug)
}

// SetLevel changes the minimum level; unknown names mean INFO.
func SetLevel(l Level) {
	switch Level(strings.ToUpper(string(l))) {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// Replace swaps the root logger, mainly for tests using zaptest/observer.
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	extended := append([]any{"err", err}, kv...)
	current().Errorw(msg, extended...)
}

// Sync flushes buffered output; call before exit.
func Sync() {
	_ = current().Sync()
}
