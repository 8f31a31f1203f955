package poller

import (
	"context"
	"fmt"

	"github.com/kushsharma/parallel"
	"github.com/odpf/salt/log"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"

	"github.com/odpf/hpcjob/config"
	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/internal/errors"
	"github.com/odpf/hpcjob/internal/telemetry"
)

const defaultConcurrency = 8

type ActiveJobs interface {
	GetActive(ctx context.Context) ([]*job.Job, error)
}

// StatusController refreshes the status of one job.
type StatusController interface {
	UpdateStatus(ctx context.Context, explicit string) error
	Close() error
}

type ControllerFactory func(j *job.Job) StatusController

// Poller refreshes every active job on a schedule. A tick never overlaps the
// previous one and each job is handled by a single controller per tick, so calls
// on one job are serialized.
type Poller struct {
	l           log.Logger
	jobs        ActiveJobs
	controllers ControllerFactory

	schedule    string
	concurrency int
	scheduler   *cron.Cron
}

func New(l log.Logger, jobs ActiveJobs, controllers ControllerFactory, conf config.PollerConfig) *Poller {
	concurrency := conf.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Poller{
		l:           l,
		jobs:        jobs,
		controllers: controllers,
		schedule:    conf.Schedule,
		concurrency: concurrency,
		scheduler: cron.New(cron.WithLogger(cronLogger{l: l}), cron.WithChain(
			cron.SkipIfStillRunning(cronLogger{l: l}),
		)),
	}
}

func (p *Poller) Start() error {
	if _, err := p.scheduler.AddFunc(p.schedule, func() {
		if err := p.Poll(context.Background()); err != nil {
			p.l.Warn("status poll finished with errors", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid poller schedule %q: %w", p.schedule, err)
	}
	p.scheduler.Start()
	p.l.Info("status poller started", "schedule", p.schedule, "concurrency", p.concurrency)
	return nil
}

// Stop waits for a running tick to finish.
func (p *Poller) Stop() {
	<-p.scheduler.Stop().Done()
}

// Poll updates the status of every active job once.
func (p *Poller) Poll(ctx context.Context) error {
	ctx, span := otel.Tracer("server/poller").Start(ctx, "Poll")
	defer span.End()

	jobs, err := p.jobs.GetActive(ctx)
	if err != nil {
		return errors.Wrap(job.EntityJob, "unable to load active jobs", err)
	}
	telemetry.NewGauge(telemetry.MetricActiveJobs, nil).Set(float64(len(jobs)))
	if len(jobs) == 0 {
		return nil
	}

	runner := parallel.NewRunner(parallel.WithLimit(p.concurrency))
	for _, j := range jobs {
		runner.Add(func(j *job.Job) func() (interface{}, error) {
			return func() (interface{}, error) {
				return nil, p.update(ctx, j)
			}
		}(j))
	}

	me := errors.NewMultiError("errors while polling job status")
	for _, result := range runner.Run() {
		me.Append(result.Err)
	}
	return errors.MultiToError(me)
}

func (p *Poller) update(ctx context.Context, j *job.Job) error {
	controller := p.controllers(j)
	defer func() {
		if err := controller.Close(); err != nil {
			p.l.Debug("unable to close remote client", "job", j.Name, "err", err)
		}
	}()

	if err := controller.UpdateStatus(ctx, ""); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	return nil
}
