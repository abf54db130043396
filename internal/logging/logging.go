package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Error(msg string, kv ...any)
	Fatal(msg string, kv ...any)
	// Zap exposes the underlying logger for libraries that take *zap.Logger.
	Zap() *zap.Logger
}

type zapLogger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// New creates a logger; honors env vars LOG_LEVEL (debug|info|error), LOG_JSON (true|false).
func New(env string) Logger {
	level := zap.NewAtomicLevelAt(parseLevel(os.Getenv("LOG_LEVEL")))
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if os.Getenv("LOG_JSON") == "false" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)
	l := newZap(core, level)
	if env != "" {
		l.base = l.base.With(zap.String("env", env))
		l.sugar = l.base.Sugar()
	}
	return l
}

// NewWithCore builds a logger on an existing core; used by tests with zaptest/observer.
func NewWithCore(core zapcore.Core) Logger {
	return newZap(core, zap.NewAtomicLevelAt(zapcore.DebugLevel))
}

func newZap(core zapcore.Core, level zap.AtomicLevel) *zapLogger {
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &zapLogger{base: base, sugar: base.Sugar(), level: level}
}

// SetLevel changes the minimum level at runtime. Unknown values fall back to info.
func SetLevel(l Logger, lvl string) {
	if zl, ok := l.(*zapLogger); ok {
		zl.level.SetLevel(parseLevel(lvl))
	}
}

// GetLevel returns the current minimum level name.
func GetLevel(l Logger) string {
	if zl, ok := l.(*zapLogger); ok {
		return zl.level.Level().String()
	}
	return "info"
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Debug(msg string, kv ...any) { l.sugar.Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...any)  { l.sugar.Infow(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...any) { l.sugar.Errorw(msg, kv...) }
func (l *zapLogger) Fatal(msg string, kv ...any) { l.sugar.Fatalw(msg, kv...) }
func (l *zapLogger) Zap() *zap.Logger            { return l.base }

// Sync flushes buffered entries; call before exit.
func Sync(l Logger) {
	_ = l.Zap().Sync()
}
