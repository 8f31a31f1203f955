package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/internal/errors"
)

// Archive submits a job that packs the remote workspace into archive storage and
// returns that archive job. A failing archive query is recorded on the job and
// reported as false.
func (c *Controller) Archive(ctx context.Context) (*job.Job, bool) {
	var stat string
	err := c.remote(ctx, func(rc RemoteClient) error {
		var err error
		stat, err = rc.Call(ctx, "archive stat", rootDir)
		return err
	})
	if err != nil {
		return nil, c.failArchive(ctx, err)
	}
	fields := strings.Fields(stat)
	if len(fields) < 3 {
		return nil, c.failArchive(ctx, fmt.Errorf("unexpected archive stat output: %q", stat))
	}
	archiveName := fields[2]

	ws, err := c.workspace(ctx)
	if err != nil {
		return nil, c.failArchive(ctx, err)
	}

	archiveJob := job.NewArchiveJob(c.job, ws.ArchiveDir)
	if err := job.NewArchiveRecord(c.job, archiveName).Store(archiveJob); err != nil {
		return nil, c.failArchive(ctx, err)
	}

	archiver := c.sibling(archiveJob)
	if err := archiver.Execute(ctx, ""); err != nil {
		c.svc.l.Error(fmt.Sprintf("unable to submit archive job for %s: %s", c.job.Name, err))
		return archiveJob, false
	}
	c.svc.l.Info(fmt.Sprintf("archiving job %s to %s", c.job.Name, archiveName), "archive_job_id", archiveJob.JobID)
	return archiveJob, true
}

func (c *Controller) failArchive(ctx context.Context, err error) bool {
	c.svc.l.Error(fmt.Sprintf("unable to archive job %s: %s", c.job.Name, err))
	c.job.StatusMessage = err.Error()
	_ = c.save(ctx)
	return false
}

// Restore runs on an archive job: it resubmits itself to fetch and unpack the
// tarball, then recreates the archived job as Completed if its record is gone.
func (c *Controller) Restore(ctx context.Context) error {
	record, err := job.ArchiveRecordFrom(c.job)
	if err != nil {
		return err
	}
	ws, err := c.workspace(ctx)
	if err != nil {
		return err
	}

	job.PrepareRestore(c.job, ws.ArchiveDir)
	if err := c.Resubmit(ctx, ""); err != nil {
		return err
	}

	_, err = c.svc.repo.GetBySchedulerJobID(ctx, record.ArchivedJobID)
	if err == nil {
		return nil
	}
	if !errors.IsErrorType(err, errors.ErrNotFound) {
		return err
	}

	restored := record.Rebuild(c.job)
	if err := c.svc.repo.Save(ctx, restored); err != nil {
		return err
	}
	c.svc.l.Info(fmt.Sprintf("recreated archived job %s from %s", restored.Name, record.ArchivedTo), "job_id", restored.JobID)
	return nil
}

// IsArchived reports whether the workspace tarball exists in archive storage.
func (c *Controller) IsArchived(ctx context.Context) (bool, error) {
	ws, err := c.workspace(ctx)
	if err != nil {
		return false, err
	}

	var files []string
	if err := c.remote(ctx, func(rc RemoteClient) error {
		var err error
		files, err = rc.ListDir(ctx, ws.ArchiveDir)
		return err
	}); err != nil {
		return false, err
	}

	name := c.job.ArchiveFilename()
	for _, f := range files {
		if f == name {
			return true, nil
		}
	}
	return false, nil
}

// sibling shares the connection of c with a controller of another job on the same system.
func (c *Controller) sibling(j *job.Job) *Controller {
	return &Controller{svc: c.svc, job: j, client: c.client, resolver: c.resolver}
}
