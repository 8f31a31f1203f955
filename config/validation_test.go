package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/odpf/hpcjob/config"
)

type ValidationTestSuite struct {
	suite.Suite
	defaultServerConfig *config.ServerConfig
}

func (s *ValidationTestSuite) SetupTest() {
	s.defaultServerConfig = &config.ServerConfig{
		Version: config.Version(1),
		Log:     config.LogConfig{Level: config.LogLevelInfo},
		DB:      config.DBConfig{DSN: "postgres://localhost:5432/hpcjob"},
		Remote:  config.RemoteConfig{Host: "https://uit.example.mil", Timeout: time.Minute},
		Lifecycle: config.LifecycleConfig{
			MinPollInterval: 30 * time.Second,
			RetryAttempts:   3,
			WorkspaceRoot:   "/var/lib/hpcjob",
			StatusMap:       map[string]string{"H": "PAS"},
		},
		Poller: config.PollerConfig{Schedule: "@every 30s", Concurrency: 2},
	}
}

func TestValidation(t *testing.T) {
	suite.Run(t, new(ValidationTestSuite))
}

func (s *ValidationTestSuite) TestValidate() {
	s.Run("WhenConfigIsValid", func() {
		err := config.Validate(s.defaultServerConfig)
		s.Assert().NoError(err)
	})

	s.Run("WhenLogLevelIsUnknown", func() {
		conf := *s.defaultServerConfig
		conf.Log.Level = "VERBOSE"

		s.Assert().Error(config.Validate(&conf))
	})

	s.Run("WhenDSNIsMissing", func() {
		conf := *s.defaultServerConfig
		conf.DB.DSN = ""

		s.Assert().Error(config.Validate(&conf))
	})

	s.Run("WhenStatusMapHasUnknownStatus", func() {
		conf := *s.defaultServerConfig
		conf.Lifecycle.StatusMap = map[string]string{"H": "HELD"}

		err := config.Validate(&conf)

		s.Assert().Error(err)
		s.Assert().Contains(err.Error(), "H=HELD")
	})

	s.Run("WhenScheduleIsInvalid", func() {
		conf := *s.defaultServerConfig
		conf.Poller.Schedule = "every now and then"

		s.Assert().Error(config.Validate(&conf))
	})

	s.Run("WhenRetryAttemptsIsZero", func() {
		conf := *s.defaultServerConfig
		conf.Lifecycle.RetryAttempts = 0

		s.Assert().Error(config.Validate(&conf))
	})
}
