package sudokidle

import (
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"
)

// ZapLogger is a runtime.Logger backed by zap, for running the engine outside Nakama.
type ZapLogger struct {
	logger *zap.Logger
	fields map[string]interface{}
}

func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: logger.WithOptions(zap.AddCallerSkip(1)), fields: map[string]interface{}{}}
}

func (l *ZapLogger) Debug(format string, v ...interface{}) {
	if l.logger.Core().Enabled(zap.DebugLevel) {
		l.logger.Debug(fmt.Sprintf(format, v...))
	}
}

func (l *ZapLogger) Info(format string, v ...interface{}) {
	if l.logger.Core().Enabled(zap.InfoLevel) {
		l.logger.Info(fmt.Sprintf(format, v...))
	}
}

func (l *ZapLogger) Warn(format string, v ...interface{}) {
	if l.logger.Core().Enabled(zap.WarnLevel) {
		l.logger.Warn(fmt.Sprintf(format, v...))
	}
}

func (l *ZapLogger) Error(format string, v ...interface{}) {
	if l.logger.Core().Enabled(zap.ErrorLevel) {
		l.logger.Error(fmt.Sprintf(format, v...))
	}
}

func (l *ZapLogger) WithField(key string, v interface{}) runtime.Logger {
	return l.WithFields(map[string]interface{}{key: v})
}

func (l *ZapLogger) WithFields(fields map[string]interface{}) runtime.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		merged[k] = v
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return &ZapLogger{logger: l.logger.With(zapFields...), fields: merged}
}

func (l *ZapLogger) Fields() map[string]interface{} {
	return l.fields
}
