package logging

import "github.com/rs/zerolog"

// CronLogger adapts zerolog to the robfig/cron logger interface.
type CronLogger struct {
	logger zerolog.Logger
}

// NewCronLogger wraps logger for cron.
func NewCronLogger(logger zerolog.Logger) CronLogger {
	return CronLogger{logger: logger.With().Str("component", "cron").Logger()}
}

// Info logs routine scheduler activity at debug level.
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug().Fields(keysAndValues).Msg(msg)
}

// Error logs scheduler failures.
func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
