package poller

import (
	"fmt"

	"github.com/odpf/salt/log"
)

// cronLogger routes scheduler messages to the service logger.
type cronLogger struct {
	l log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(fmt.Sprintf("%s: %s", msg, err), keysAndValues...)
}
