package job

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

type cronLogger struct {
	log *slog.Logger
}

// CronLogger routes robfig/cron's internal logging through slog.
func CronLogger(log *slog.Logger) cron.Logger {
	return cronLogger{log: log.With("component", "cron")}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
