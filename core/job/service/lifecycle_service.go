package service

import (
	"strings"
	"time"

	"github.com/odpf/salt/log"
	"github.com/spf13/afero"

	"github.com/odpf/hpcjob/config"
	"github.com/odpf/hpcjob/core/job"
)

// LifecycleService holds the dependencies shared by every job and hands out
// per-job controllers.
type LifecycleService struct {
	l log.Logger

	repo     JobRepository
	clients  ClientFactory
	tokens   TokenProvider
	handlers *HandlerRegistry
	systems  SystemRegistry

	translator *job.StatusTranslator
	retry      RetryPolicy
	fs         afero.Fs

	config config.LifecycleConfig
}

func NewLifecycleService(l log.Logger, repo JobRepository, clients ClientFactory, tokens TokenProvider,
	handlers *HandlerRegistry, systems SystemRegistry, fs afero.Fs, conf config.LifecycleConfig,
) *LifecycleService {
	overrides := map[string]job.Status{}
	for code, value := range conf.StatusMap {
		status, err := job.StatusFromString(value)
		if err != nil {
			l.Warn("ignoring status override", "code", code, "err", err)
			continue
		}
		overrides[code] = status
	}

	retry := DefaultRetryPolicy()
	if conf.RetryAttempts > 0 {
		retry.MaxAttempts = conf.RetryAttempts
	}
	if conf.RetryInitBackoff > 0 {
		retry.InitBackoff = conf.RetryInitBackoff
	}
	if conf.RetryMaxBackoff > 0 {
		retry.MaxBackoff = conf.RetryMaxBackoff
	}

	if handlers == nil {
		handlers = NewHandlerRegistry()
	}
	if systems == nil {
		systems = NewDecommissionedSystems(conf.DecommissionedSystems...)
	}

	return &LifecycleService{
		l:          l,
		repo:       repo,
		clients:    clients,
		tokens:     tokens,
		handlers:   handlers,
		systems:    systems,
		translator: job.NewStatusTranslator(overrides),
		retry:      retry,
		fs:         fs,
		config:     conf,
	}
}

// WithRetryPolicy replaces the policy wrapping every remote call.
func (s *LifecycleService) WithRetryPolicy(p RetryPolicy) *LifecycleService {
	s.retry = p
	return s
}

// Controller returns a controller owning its own lazily connected client.
// Calls on one controller must not overlap.
func (s *LifecycleService) Controller(j *job.Job) *Controller {
	return &Controller{svc: s, job: j}
}

func (s *LifecycleService) minPollInterval() time.Duration {
	return s.config.MinPollInterval
}

func isAllocationError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "allocation")
}
