package logutil

import (
    "os"
    "strings"
    "sync/atomic"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

var jsonMode atomic.Bool

func init() {
    if os.Getenv("ZKCTL_LOG_JSON") == "1" || os.Getenv("ZKCTL_LOG_FORMAT") == "json" {
        jsonMode.Store(true)
    }
}

func SetJSON(enabled bool) { jsonMode.Store(enabled) }

// New builds a zap logger. JSON mode selects the production encoder, otherwise
// a human readable console encoder is used. An empty level means info.
func New(level string) (*zap.Logger, error) {
    cfg := zap.NewProductionConfig()
    if !jsonMode.Load() {
        cfg = zap.NewDevelopmentConfig()
        cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
        cfg.Development = false
    }
    lvl := zapcore.InfoLevel
    if level != "" {
        if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil { return nil, err }
    }
    cfg.Level = zap.NewAtomicLevelAt(lvl)
    return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
    if l == nil { return zap.NewNop() }
    return l
}

func Debugf(l *zap.Logger, f string, args ...any) { sugar(l).Debugf(f, args...) }
func Infof(l *zap.Logger, f string, args ...any)  { sugar(l).Infof(f, args...) }
func Warnf(l *zap.Logger, f string, args ...any)  { sugar(l).Warnf(f, args...) }
func Errorf(l *zap.Logger, f string, args ...any) { sugar(l).Errorf(f, args...) }

func sugar(l *zap.Logger) *zap.SugaredLogger {
    return OrNop(l).WithOptions(zap.AddCallerSkip(1)).Sugar()
}
