package server

import (
	"os"

	"github.com/odpf/salt/log"

	"github.com/odpf/hpcjob/config"
)

func NewLogger(conf config.LogConfig) log.Logger {
	level := conf.Level.String()
	if level == "" {
		level = config.LogLevelInfo.String()
	}
	return log.NewLogrus(
		log.LogrusWithLevel(level),
		log.LogrusWithWriter(os.Stderr),
	)
}
