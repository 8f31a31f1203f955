package service

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/internal/errors"
)

const (
	placeholderJobIndex = "$JOB_INDEX"
	placeholderRunDir   = "$RUN_DIR"
)

// ProcessResults fetches the output files, marks the job Completed and runs its
// post-processing handler. It reports whether every output file arrived.
func (c *Controller) ProcessResults(ctx context.Context) bool {
	c.svc.l.Debug("started processing results", "job", c.job.Name)

	ok := c.GetRemoteFiles(ctx, c.job.Files.TransferOutput)
	if !ok {
		c.job.StatusMessage = partialMessage
	}
	c.job.CompletedAt = time.Now()
	if err := c.job.Transition(job.StatusCompleted); err != nil {
		c.job.ForceStatus(job.StatusCompleted)
	}
	c.runPostProcessor(ctx)

	_ = c.save(ctx)
	c.svc.l.Debug("finished processing results", "job", c.job.Name)
	return ok
}

// GetRemoteFiles copies files from the remote work directory into the local
// workspace, keeping their relative layout. Every file is attempted; the result is
// true only if each transfer succeeded and left a file behind.
func (c *Controller) GetRemoteFiles(ctx context.Context, files []string) bool {
	if len(files) == 0 {
		return true
	}
	if c.job.LocalWorkspace == "" {
		c.svc.l.Warn("job has no local workspace to transfer files into", "job", c.job.Name)
		return false
	}

	ws, err := c.workspace(ctx)
	if err != nil {
		c.svc.l.Error(fmt.Sprintf("unable to resolve workspace of job %s: %s", c.job.Name, err))
		return false
	}

	var failures error
	for _, remote := range c.resolvePaths(files, ws.WorkDir) {
		localPath := filepath.Join(c.job.LocalWorkspace, filepath.FromSlash(relativeTo(ws.WorkDir, remote)))
		if err := c.svc.fs.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			failures = multierror.Append(failures, errors.TransferFailure(job.EntityJob, "unable to create local directory for "+remote, err))
			continue
		}

		if err := c.remote(ctx, func(rc RemoteClient) error {
			return rc.GetFile(ctx, remote, localPath)
		}); err != nil {
			failures = multierror.Append(failures, errors.TransferFailure(job.EntityJob, "unable to get "+remote, err))
			continue
		}

		if exists, _ := afero.Exists(c.svc.fs, localPath); !exists {
			failures = multierror.Append(failures, errors.TransferFailure(job.EntityJob, localPath+" is missing after transfer", nil))
		}
	}

	if failures != nil {
		c.svc.l.Warn(fmt.Sprintf("failed to get remote files of job %s: %s", c.job.Name, failures))
		return false
	}
	return true
}

func (c *Controller) getIntermediateResults(ctx context.Context) {
	if c.GetRemoteFiles(ctx, c.job.Files.TransferIntermediate) {
		c.runPostProcessor(ctx)
	}
}

// runPostProcessor runs the handler registered under the job's handler name. An
// unknown name is logged and skipped.
func (c *Controller) runPostProcessor(ctx context.Context) {
	if c.job.PostProcessHandler == "" {
		return
	}
	handler, err := c.svc.handlers.Lookup(c.job.PostProcessHandler)
	if err != nil {
		c.svc.l.Warn("skipping post processing", "job", c.job.Name, "err", err)
		return
	}
	if err := handler(ctx, c.job); err != nil {
		c.svc.l.Error(fmt.Sprintf("post processing of job %s failed: %s", c.job.Name, err))
	}
}

// resolvePaths expands sub-job placeholders of array jobs and anchors relative
// paths at the work directory.
func (c *Controller) resolvePaths(files []string, workDir string) []string {
	var resolved []string
	for _, f := range files {
		if c.job.IsArrayJob() && (strings.Contains(f, placeholderJobIndex) || strings.Contains(f, placeholderRunDir)) {
			for _, idx := range c.job.Script.ArrayIndices {
				index := strconv.Itoa(idx)
				expanded := strings.NewReplacer(placeholderJobIndex, index, placeholderRunDir, "run_"+index).Replace(f)
				resolved = append(resolved, remotePath(workDir, expanded))
			}
			continue
		}
		resolved = append(resolved, remotePath(workDir, f))
	}
	return resolved
}

func relativeTo(base, p string) string {
	rel := strings.TrimPrefix(p, strings.TrimSuffix(base, "/")+"/")
	if rel == p {
		return path.Base(p)
	}
	return rel
}
