package service

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/internal/errors"
	"github.com/odpf/hpcjob/internal/telemetry"
)

const (
	noScriptMessage   = "No PBS script created. Contact web site administrator for resolution."
	allocationMessage = "Submission failed because subproject allocation has expired or there are insufficient hours."
	notFoundMessage   = "Job ID was not found on %s. Unable to get status information."
	partialMessage    = "Some result files could not be transferred."

	rootDir = "/"
)

// Controller drives the lifecycle of one job against its remote system.
type Controller struct {
	svc *LifecycleService
	job *job.Job

	client   RemoteClient
	resolver *WorkspaceResolver
}

func (c *Controller) Job() *job.Job {
	return c.job
}

// Connect makes sure the client is authenticated and connected, reconnecting when
// the previous connection dropped. Every remote operation goes through it.
func (c *Controller) Connect(ctx context.Context) error {
	system := c.job.Placement.System
	if c.svc.systems.IsDecommissioned(system) {
		return errors.FailedPrecondition(EntityRemote, fmt.Sprintf("system %s has been decommissioned", system))
	}
	if c.client == nil {
		c.client = c.svc.clients.NewClient(system)
		c.resolver = NewWorkspaceResolver(c.client, c.svc.retry)
	}
	if c.client.IsConnected() {
		return nil
	}

	token, err := c.svc.tokens.Token(ctx, c.job.Owner)
	if err != nil || token == "" {
		return errors.RemoteUnavailable(EntityRemote, fmt.Sprintf("no access token for %s", c.job.Owner), err)
	}
	if err := c.svc.retry.Do(ctx, func() error {
		return c.client.Connect(ctx, token)
	}); err != nil {
		return errors.RemoteUnavailable(EntityRemote, fmt.Sprintf("unable to connect to %s", system), err)
	}
	c.svc.l.Debug("connected to remote system", "system", system, "job", c.job.Name)
	return nil
}

// Close releases the remote connection, if any.
func (c *Controller) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Controller) remote(ctx context.Context, f func(RemoteClient) error) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.svc.retry.Do(ctx, func() error {
		return f(c.client)
	})
}

func (c *Controller) workspace(ctx context.Context) (job.Workspace, error) {
	if c.job.Workspace.IsResolved() {
		return c.job.Workspace, nil
	}
	if err := c.Connect(ctx); err != nil {
		return job.Workspace{}, err
	}
	return c.resolver.ResolveJob(ctx, c.job)
}

func (c *Controller) save(ctx context.Context) error {
	if err := c.svc.repo.Save(ctx, c.job); err != nil {
		c.svc.l.Error(fmt.Sprintf("unable to save job %s: %s", c.job.Name, err))
		return err
	}
	return nil
}

// Execute submits the job. It is refused for a job that already has a scheduler
// job id, so a job is never queued twice.
func (c *Controller) Execute(ctx context.Context, remoteName string) error {
	status := c.job.Status()
	if status.IsActive() || (c.job.JobID != "" && status != job.StatusPending) {
		return errors.StateConflict(job.EntityJob, fmt.Sprintf("job %s was already submitted as %s", c.job.Name, c.job.JobID))
	}
	return c.execute(ctx, remoteName)
}

// Resubmit runs the job again under a new scheduler job id. The previous id is kept
// in the job history.
func (c *Controller) Resubmit(ctx context.Context, remoteName string) error {
	if c.job.Status().IsActive() {
		return errors.StateConflict(job.EntityJob, fmt.Sprintf("job %s is still %s, stop it before resubmitting",
			c.job.Name, c.job.Status().DisplayName()))
	}
	c.job.SwapSchedulerJobID("")
	c.job.Qstat = nil
	c.job.SubJobs = nil
	c.job.StatusMessage = ""
	c.job.StartedAt, c.job.CompletedAt = time.Time{}, time.Time{}
	return c.execute(ctx, remoteName)
}

func (c *Controller) execute(ctx context.Context, remoteName string) error {
	if err := c.job.Validate(); err != nil {
		return errors.InvalidArgument(job.EntityJob, fmt.Sprintf("job %s is invalid: %s", c.job.Name, err))
	}
	if c.job.LocalWorkspace == "" && c.job.StringProperty(job.PropArchivedJobID) == "" {
		c.job.LocalWorkspace = filepath.Join(c.svc.config.WorkspaceRoot, filepath.FromSlash(c.job.RemoteWorkspaceSuffix()))
	}
	if remoteName == "" {
		remoteName = c.job.Name + ".pbs"
	}

	ws, err := c.prepareWorkspace(ctx)
	if err != nil {
		return c.failExecute(ctx, noScriptMessage, err)
	}

	script, err := c.job.Script.Render(c.job)
	if err != nil {
		return c.failExecute(ctx, noScriptMessage, err)
	}

	var jobID string
	err = c.remote(ctx, func(rc RemoteClient) error {
		var err error
		jobID, err = rc.Submit(ctx, script, ws.WorkDir, remoteName)
		return err
	})
	if err != nil {
		return c.failExecute(ctx, c.submissionMessage(ctx, ws, err), errors.SubmissionRejected(job.EntityJob,
			fmt.Sprintf("scheduler refused job %s", c.job.Name), err))
	}

	c.job.SwapSchedulerJobID(jobID)
	c.job.ExecutedAt = time.Now()
	c.job.StatusMessage = ""
	c.job.Archived = false

	var transitionErr error
	if c.job.Status().IsTerminal() {
		transitionErr = c.job.TransitionForResubmit()
	} else {
		transitionErr = c.job.Transition(job.StatusSubmitted)
	}
	if transitionErr != nil {
		c.job.ForceStatus(job.StatusSubmitted)
	}

	c.submitPostProcessing(ctx, ws)
	telemetry.NewCounter(telemetry.MetricSubmissions, map[string]string{
		"system": c.job.Placement.System,
		"result": "success",
	}).Inc()
	c.svc.l.Info(fmt.Sprintf("job %s submitted as %s", c.job.Name, jobID), "system", c.job.Placement.System)

	return c.save(ctx)
}

// prepareWorkspace creates the work directory and stages every input file into it.
func (c *Controller) prepareWorkspace(ctx context.Context) (job.Workspace, error) {
	ws, err := c.workspace(ctx)
	if err != nil {
		return job.Workspace{}, err
	}

	if err := c.remote(ctx, func(rc RemoteClient) error {
		_, err := rc.Call(ctx, "mkdir -p "+ws.WorkDir, rootDir)
		return err
	}); err != nil {
		return job.Workspace{}, errors.InternalError(EntityWorkspace, "unable to create "+ws.WorkDir, err)
	}

	for _, local := range c.job.Files.TransferInput {
		remotePath := path.Join(ws.WorkDir, filepath.Base(local))
		if err := c.remote(ctx, func(rc RemoteClient) error {
			return rc.PutFile(ctx, local, remotePath)
		}); err != nil {
			return job.Workspace{}, errors.TransferFailure(job.EntityJob, fmt.Sprintf("unable to transfer %s", local), err)
		}
	}

	if err := c.stageIn(ctx, ws); err != nil {
		return job.Workspace{}, err
	}
	return ws, nil
}

func (c *Controller) stageIn(ctx context.Context, ws job.Workspace) error {
	if len(c.job.Files.HomeInput) == 0 && len(c.job.Files.ArchiveInput) == 0 {
		return nil
	}

	var commands []string
	if len(c.job.Files.HomeInput) > 0 {
		home, err := c.resolver.EnvVar(ctx, EnvHomeDir)
		if err != nil {
			return err
		}
		for _, f := range c.job.Files.HomeInput {
			commands = append(commands, fmt.Sprintf("cp -r %s %s/", remotePath(home, f), ws.WorkDir))
		}
	}
	if len(c.job.Files.ArchiveInput) > 0 {
		archiveHome, err := c.resolver.EnvVar(ctx, EnvArchiveHome)
		if err != nil {
			return err
		}
		for _, f := range c.job.Files.ArchiveInput {
			if path.IsAbs(f) {
				commands = append(commands, "archive get -p "+f)
				continue
			}
			commands = append(commands, fmt.Sprintf("archive get -p -C %s %s", archiveHome, f))
		}
	}

	for _, cmd := range commands {
		if err := c.remote(ctx, func(rc RemoteClient) error {
			_, err := rc.Call(ctx, cmd, ws.WorkDir)
			return err
		}); err != nil {
			return errors.TransferFailure(job.EntityJob, fmt.Sprintf("unable to stage input with '%s'", cmd), err)
		}
	}
	return nil
}

// submissionMessage tells apart a scheduler refusal from a script that never reached the system.
func (c *Controller) submissionMessage(ctx context.Context, ws job.Workspace, err error) string {
	if isAllocationError(err) {
		return allocationMessage
	}
	listErr := c.remote(ctx, func(rc RemoteClient) error {
		_, err := rc.Call(ctx, fmt.Sprintf("ls %s/*.pbs", ws.WorkDir), ws.WorkDir)
		return err
	})
	if listErr != nil {
		return noScriptMessage
	}
	return fmt.Sprintf("Error submitting job on \"%s\": %s", c.job.Placement.System, err)
}

func (c *Controller) failExecute(ctx context.Context, message string, cause error) error {
	c.job.ForceStatus(job.StatusError)
	c.job.StatusMessage = message
	telemetry.NewCounter(telemetry.MetricSubmissions, map[string]string{
		"system": c.job.Placement.System,
		"result": "failed",
	}).Inc()
	c.svc.l.Error(fmt.Sprintf("unable to submit job %s: %s", c.job.Name, cause), "system", c.job.Placement.System)

	_ = c.save(ctx)
	return cause
}

// submitPostProcessing queues the optional post-processing script behind the job.
// A failure here does not fail the submission.
func (c *Controller) submitPostProcessing(ctx context.Context, ws job.Workspace) {
	block := c.job.StringProperty(job.PropPostProcessScript)
	if block == "" {
		return
	}

	script := job.NewScriptSpec(block)
	script.SetDirective("-W", "depend=afterany:"+c.job.JobID)
	post := *c.job
	post.Name = c.job.Name + "_post"
	post.Script = script
	post.Files = job.Manifest{}

	rendered, err := script.Render(&post)
	if err != nil {
		c.svc.l.Warn("unable to render post processing script", "job", c.job.Name, "err", err)
		return
	}

	var postID string
	if err := c.remote(ctx, func(rc RemoteClient) error {
		var err error
		postID, err = rc.Submit(ctx, rendered, ws.WorkDir, post.Name+".pbs")
		return err
	}); err != nil {
		c.svc.l.Warn("unable to submit post processing job", "job", c.job.Name, "err", err)
		return
	}
	c.job.SetProperty(job.PropPostProcessingJobID, postID)
}

func remotePath(dir, p string) string {
	if path.IsAbs(p) {
		return p
	}
	return path.Join(dir, p)
}

func isNotFoundError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Unknown Job Id")
}
