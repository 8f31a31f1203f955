package service

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/kushsharma/parallel"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/internal/errors"
)

// Stop deletes the job from the scheduler. The job becomes Aborted when the
// scheduler accepted the request and Error otherwise.
func (c *Controller) Stop(ctx context.Context) bool {
	if c.job.Status().IsTerminal() {
		return true
	}
	if c.job.JobID == "" {
		_ = c.UpdateStatus(ctx, job.StatusAborted.String())
		return true
	}

	err := c.remote(ctx, func(rc RemoteClient) error {
		return rc.Terminate(ctx, c.job.JobID)
	})
	if err != nil {
		c.svc.l.Error(fmt.Sprintf("unable to stop job %s (%s): %s", c.job.Name, c.job.JobID, err))
		c.job.StatusMessage = fmt.Sprintf("Unable to stop job %s: %s", c.job.JobID, err)
		_ = c.UpdateStatus(ctx, job.StatusError.String())
		return false
	}
	_ = c.UpdateStatus(ctx, job.StatusAborted.String())
	return true
}

func (c *Controller) Pause(ctx context.Context) bool {
	return c.control(ctx, "hold", func(rc RemoteClient) error {
		return rc.Hold(ctx, c.job.JobID)
	})
}

func (c *Controller) Resume(ctx context.Context) bool {
	return c.control(ctx, "release", func(rc RemoteClient) error {
		return rc.Release(ctx, c.job.JobID)
	})
}

func (c *Controller) control(ctx context.Context, action string, f func(RemoteClient) error) bool {
	if c.job.JobID == "" {
		c.svc.l.Warn(fmt.Sprintf("unable to %s job %s: not submitted", action, c.job.Name))
		return false
	}
	if err := c.remote(ctx, f); err != nil {
		c.svc.l.Error(fmt.Sprintf("unable to %s job %s (%s): %s", action, c.job.Name, c.job.JobID, err))
		return false
	}
	return true
}

// Clean removes the local workspace and the remote work and home directories, or
// only the archive directory when archive is set. Removals run concurrently and
// failures are logged; it always reports true.
func (c *Controller) Clean(ctx context.Context, archive bool) bool {
	return c.clean(ctx, archive, !c.svc.systems.IsDecommissioned(c.job.Placement.System))
}

func (c *Controller) clean(ctx context.Context, archive, remote bool) bool {
	runner := parallel.NewRunner()

	if c.job.LocalWorkspace != "" {
		localDir := c.job.LocalWorkspace
		c.svc.l.Warn("removing local workspace", "path", localDir)
		runner.Add(func() (interface{}, error) {
			return nil, c.svc.fs.RemoveAll(localDir)
		})
	}

	if remote {
		ws, err := c.workspace(ctx)
		if err == nil {
			// the removals share one client, connected before the fan-out
			err = c.Connect(ctx)
		}
		if err != nil {
			c.svc.l.Error(fmt.Sprintf("unable to reach remote workspace of job %s: %s", c.job.Name, err))
		} else {
			client := c.client
			var commands []string
			if archive {
				commands = append(commands, fmt.Sprintf("archive rm -rf %s || true", ws.ArchiveDir))
			} else {
				commands = append(commands,
					fmt.Sprintf("rm -rf %s || true", ws.WorkDir),
					fmt.Sprintf("rm -rf %s || true", ws.HomeDir))
			}
			for _, cmd := range commands {
				runner.Add(func(cmd string) func() (interface{}, error) {
					return func() (interface{}, error) {
						c.svc.l.Info(fmt.Sprintf("executing command '%s' on %s", cmd, c.job.Placement.System))
						return nil, c.svc.retry.Do(ctx, func() error {
							_, err := client.Call(ctx, cmd, rootDir)
							return err
						})
					}
				}(cmd))
			}
		}
		if archive {
			c.setArchivedStatus(ctx, false)
		}
	}

	var failures error
	for _, result := range runner.Run() {
		if result.Err != nil {
			failures = multierror.Append(failures, result.Err)
		}
	}
	if failures != nil {
		c.svc.l.Warn(fmt.Sprintf("clean up of job %s was incomplete: %s", c.job.Name, failures))
	}
	return true
}

// Delete stops the job, cleans its workspaces and removes the record. A job that
// could not be stopped is kept. Jobs on decommissioned systems skip every remote call.
func (c *Controller) Delete(ctx context.Context) error {
	archive := c.job.StringProperty(job.PropArchivedJobID) != ""
	remote := !c.svc.systems.IsDecommissioned(c.job.Placement.System)

	if remote && !c.Stop(ctx) {
		return errors.StateConflict(job.EntityJob, fmt.Sprintf("Delete failed while performing job cleanup: job %s could not be stopped", c.job.Name))
	}
	c.clean(ctx, archive, remote)

	if err := c.svc.repo.Delete(ctx, c.job.ID); err != nil {
		return err
	}
	c.svc.l.Info("job deleted", "job", c.job.Name, "id", c.job.ID.String())
	return nil
}
