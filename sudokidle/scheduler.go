package sudokidle

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/robfig/cron/v3"
)

// Scheduler runs periodic tasks. The returned cancel function stops the task and is safe to call
// more than once.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func())
}

// CronScheduler runs tasks on a robfig/cron scheduler. Overlapping runs of the same task are
// skipped and panics are recovered and logged.
type CronScheduler struct {
	cron *cron.Cron
}

// NewCronScheduler creates and starts a scheduler. Intervals under one second are rounded up to
// one second.
func NewCronScheduler(logger runtime.Logger) *CronScheduler {
	cronLogger := &cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	c.Start()
	return &CronScheduler{cron: c}
}

func (s *CronScheduler) Every(interval time.Duration, fn func()) func() {
	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(fn))
	var once sync.Once
	return func() {
		once.Do(func() {
			s.cron.Remove(id)
		})
	}
}

// Stop halts the scheduler and waits for running tasks to finish.
func (s *CronScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger adapts runtime.Logger to the cron.Logger interface.
type cronLogger struct {
	logger runtime.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: %s%s", msg, formatKeysAndValues(keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: %s: %v%s", msg, err, formatKeysAndValues(keysAndValues))
}

func formatKeysAndValues(keysAndValues []interface{}) string {
	if len(keysAndValues) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		sb.WriteString(" ")
		if i+1 < len(keysAndValues) {
			sb.WriteString(fmt.Sprintf("%v=%v", keysAndValues[i], keysAndValues[i+1]))
		} else {
			sb.WriteString(fmt.Sprintf("%v", keysAndValues[i]))
		}
	}
	return sb.String()
}
