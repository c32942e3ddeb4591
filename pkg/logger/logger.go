package logger

import (
	"os"

	"go.uber.org/zap"
)

type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a production JSON logger, or a console logger when debug is set.
func New(debug bool) *Logger {
	var (
		base *zap.Logger
		err  error
	)
	if debug {
		base, err = zap.NewDevelopment(zap.AddCallerSkip(2))
	} else {
		base, err = zap.NewProduction(zap.AddCallerSkip(2))
	}
	if err != nil {
		base = zap.NewNop()
	}
	return &Logger{sugar: base.Sugar()}
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
	_ = l.sugar.Sync()
	os.Exit(1)
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// Global logger instance
var GlobalLogger = New(false)

// SetDebug swaps the global logger for a development one.
func SetDebug(debug bool) {
	GlobalLogger = New(debug)
}

// Convenience functions
func Info(format string, v ...interface{}) {
	GlobalLogger.Info(format, v...)
}

func Error(format string, v ...interface{}) {
	GlobalLogger.Error(format, v...)
}

func Debug(format string, v ...interface{}) {
	GlobalLogger.Debug(format, v...)
}

func Fatal(format string, v ...interface{}) {
	GlobalLogger.Fatal(format, v...)
}

func Sync() error {
	return GlobalLogger.Sync()
}
