package logger

import (
	"github.com/robfig/cron/v3"
)

// cronLogger adapts Logger to the cron.Logger interface
type cronLogger struct {
	log *Logger
}

// CronLogger returns a cron.Logger that writes through this logger.
// Cron's routine info messages are logged at debug level.
func (l *Logger) CronLogger() cron.Logger {
	return cronLogger{log: l}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().
		Str("action", "cron").
		Fields(keysAndValues).
		Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().
		Err(err).
		Str("action", "cron").
		Fields(keysAndValues).
		Msg(msg)
}
