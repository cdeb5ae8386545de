// Package loggingtest provides a logging service that records entries in memory.
package loggingtest

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type TestLogService struct {
	root  *zap.Logger
	level zap.AtomicLevel
	logs  *observer.ObservedLogs
}

// New returns a service logging every level.
func New() *TestLogService {
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	core, logs := observer.New(level)
	return &TestLogService{
		root:  zap.New(core),
		level: level,
		logs:  logs,
	}
}

func (l *TestLogService) Root() *zap.Logger {
	return l.root
}

func (l *TestLogService) SetLevel(level string) error {
	return l.level.UnmarshalText([]byte(level))
}

// Logs returns the recorded entries.
func (l *TestLogService) Logs() *observer.ObservedLogs {
	return l.logs
}
