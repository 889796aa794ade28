package whatsapp

import (
	"fmt"

	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
)

// zapLogger adapts the project zap logger to whatsmeow's logging interface.
type zapLogger struct {
	l *zap.Logger
}

func newWALogger(l *zap.Logger, module string) waLog.Logger {
	return &zapLogger{l: l.Named(module)}
}

func (z *zapLogger) Errorf(msg string, args ...interface{}) { z.l.Error(fmt.Sprintf(msg, args...)) }
func (z *zapLogger) Warnf(msg string, args ...interface{})  { z.l.Warn(fmt.Sprintf(msg, args...)) }
func (z *zapLogger) Infof(msg string, args ...interface{})  { z.l.Info(fmt.Sprintf(msg, args...)) }
func (z *zapLogger) Debugf(msg string, args ...interface{}) { z.l.Debug(fmt.Sprintf(msg, args...)) }

func (z *zapLogger) Sub(module string) waLog.Logger {
	return &zapLogger{l: z.l.Named(module)}
}
