package service

import (
	"context"
	"fmt"
	"time"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/internal/errors"
	"github.com/odpf/hpcjob/internal/telemetry"
)

// UpdateStatus applies explicit when given. Otherwise it polls the scheduler, but only
// for a submitted, non-terminal job whose last check is older than the minimum poll
// interval. Remote failures end up in the status message; the returned error only
// reports a failure to persist the job, which is saved on every call.
func (c *Controller) UpdateStatus(ctx context.Context, explicit string) error {
	old := c.job.Status()
	updateNeeded := !old.IsTerminal()
	now := time.Now()

	switch {
	case explicit != "":
		c.applyExplicitStatus(explicit)
	case updateNeeded && c.job.JobID != "" && c.isTimeToUpdate(now):
		c.poll(ctx, now)
		c.job.LastStatusCheck = now
	}

	if updateNeeded {
		current := c.job.Status()
		switch {
		case current == job.StatusRunning && (old == job.StatusPending || old == job.StatusSubmitted):
			c.job.StartedAt = now
		case current == job.StatusCompleted:
			c.ProcessResults(ctx)
		case current == job.StatusError || current == job.StatusAborted:
			c.job.CompletedAt = now
		}
	}

	if current := c.job.Status(); current != old {
		telemetry.NewCounter(telemetry.MetricStatusTransitions, map[string]string{
			"from": old.String(),
			"to":   current.String(),
		}).Inc()
		c.svc.l.Info(fmt.Sprintf("job %s moved from %s to %s", c.job.Name, old.DisplayName(), current.DisplayName()))
	}
	return c.save(ctx)
}

func (c *Controller) isTimeToUpdate(now time.Time) bool {
	if c.job.LastStatusCheck.IsZero() {
		return true
	}
	return now.Sub(c.job.LastStatusCheck) >= c.svc.minPollInterval()
}

// applyExplicitStatus accepts a status code or display name; anything else is kept
// verbatim under the other status property and the job becomes Other.
func (c *Controller) applyExplicitStatus(explicit string) {
	status, err := job.StatusFromString(explicit)
	if err != nil {
		c.job.SetProperty(job.PropOtherStatus, explicit)
		c.job.ForceStatus(job.StatusOther)
		return
	}
	if status != job.StatusOther {
		c.job.DeleteProperty(job.PropOtherStatus)
	}
	c.job.ForceStatus(status)
}

func (c *Controller) poll(ctx context.Context, now time.Time) {
	var snapshot *job.Qstat
	err := c.remote(ctx, func(rc RemoteClient) error {
		var err error
		snapshot, err = rc.Status(ctx, c.job.JobID)
		return err
	})
	if err != nil && !isNotFoundError(err) {
		c.job.StatusMessage = fmt.Sprintf("Unable to get status of job %s: %s", c.job.JobID, err)
		c.svc.l.Warn("unable to poll job status", "job", c.job.Name, "job_id", c.job.JobID, "err", err)
		return
	}
	if err != nil {
		snapshot = nil
	}

	translation := c.svc.translator.Translate(snapshot)
	if translation.Message != "" {
		c.job.StatusMessage = fmt.Sprintf(notFoundMessage, c.job.Placement.System)
	}

	status := translation.Status
	if status == job.StatusCompleted {
		// the cleanup job takes over the job id; completion waits for it
		if cleanupID := c.job.StringProperty(job.PropCleanupJobID); cleanupID != "" && cleanupID != c.job.JobID {
			status = job.StatusSubmitted
			c.job.SwapSchedulerJobID(cleanupID)
		} else {
			c.setArchivedStatus(ctx, true)
		}
	}

	if snapshot != nil {
		c.job.Qstat = snapshot.Raw
	}
	c.job.SubJobs = translation.SubJobs
	if err := c.job.Transition(status); err != nil {
		c.svc.l.Warn("ignoring scheduler status", "job", c.job.Name, "status", status.DisplayName(), "err", err)
	}

	if c.job.IntermediateTransferDue(now) {
		c.job.LastIntermediateTransfer = now
		c.getIntermediateResults(ctx)
	}
}

// setArchivedStatus flags the job archived by this archive job, if any.
func (c *Controller) setArchivedStatus(ctx context.Context, archived bool) {
	archivedJobID := c.job.StringProperty(job.PropArchivedJobID)
	if archivedJobID == "" {
		return
	}

	original, err := c.svc.repo.GetBySchedulerJobID(ctx, archivedJobID)
	if err != nil {
		if !errors.IsErrorType(err, errors.ErrNotFound) {
			c.svc.l.Warn("unable to load archived job", "job_id", archivedJobID, "err", err)
		}
		return
	}
	original.Archived = archived
	if err := c.svc.repo.Save(ctx, original); err != nil {
		c.svc.l.Warn("unable to flag archived job", "job_id", archivedJobID, "err", err)
	}
}
