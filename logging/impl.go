package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface used across monovo. It is a thin layer over a zap.SugaredLogger so that
// packages depend on this module's logging rather than on zap directly.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatal(args ...interface{})

	Sublogger(subname string) Logger
	SetLevel(level zapcore.Level)
	Level() zapcore.Level
	AsZap() *zap.SugaredLogger
	Sync() error
}

type impl struct {
	name  string
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
}

func (imp *impl) Debug(args ...interface{}) { imp.sugar.Debug(args...) }
func (imp *impl) Debugf(template string, args ...interface{}) { imp.sugar.Debugf(template, args...) }
func (imp *impl) Debugw(msg string, kvs ...interface{}) { imp.sugar.Debugw(msg, kvs...) }
func (imp *impl) Info(args ...interface{}) { imp.sugar.Info(args...) }
func (imp *impl) Infof(template string, args ...interface{}) { imp.sugar.Infof(template, args...) }
func (imp *impl) Infow(msg string, kvs ...interface{}) { imp.sugar.Infow(msg, kvs...) }
func (imp *impl) Warn(args ...interface{}) { imp.sugar.Warn(args...) }
func (imp *impl) Warnf(template string, args ...interface{}) { imp.sugar.Warnf(template, args...) }
func (imp *impl) Warnw(msg string, kvs ...interface{}) { imp.sugar.Warnw(msg, kvs...) }
func (imp *impl) Error(args ...interface{}) { imp.sugar.Error(args...) }
func (imp *impl) Errorf(template string, args ...interface{}) { imp.sugar.Errorf(template, args...) }
func (imp *impl) Errorw(msg string, kvs ...interface{}) { imp.sugar.Errorw(msg, kvs...) }
func (imp *impl) Fatal(args ...interface{}) { imp.sugar.Fatal(args...) }
func (imp *impl) AsZap() *zap.SugaredLogger { return imp.sugar }
func (imp *impl) Sync() error { return imp.sugar.Sync() }
func (imp *impl) Level() zapcore.Level { return imp.level.Level() }
func (imp *impl) SetLevel(level zapcore.Level) { imp.level.SetLevel(level) }

// Sublogger returns a logger named "<name>.<subname>" sharing outputs and level with its parent.
func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return &impl{
		name:  newName,
		level: imp.level,
		sugar: imp.sugar.Named(subname),
	}
}
