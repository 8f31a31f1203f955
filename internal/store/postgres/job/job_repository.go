package job

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/internal/errors"
)

const (
	jobColumns = `id, name, owner, label, description, local_workspace,
system, queue, node_type, node_count, processes_per_node, project_id,
max_time_seconds, max_cleanup_time_seconds, script, files,
intermediate_interval_seconds, last_intermediate_transfer, post_process_handler,
remote_workspace_id, remote_workspace_suffix, work_dir, home_dir, archive_dir,
scheduler_job_id, status, status_message, qstat, sub_jobs,
executed_at, started_at, completed_at, last_status_check,
archived, extended_properties, created_at, updated_at`
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Save inserts the job or replaces every mutable column of an existing one.
func (j JobRepository) Save(ctx context.Context, jobEntity *job.Job) error {
	storageJob, err := toStorageJob(jobEntity)
	if err != nil {
		return err
	}

	upsertJobQuery := `
INSERT INTO job (
	id, name, owner, label, description, local_workspace,
	system, queue, node_type, node_count, processes_per_node, project_id,
	max_time_seconds, max_cleanup_time_seconds, script, files,
	intermediate_interval_seconds, last_intermediate_transfer, post_process_handler,
	remote_workspace_id, remote_workspace_suffix, work_dir, home_dir, archive_dir,
	scheduler_job_id, status, status_message, qstat, sub_jobs,
	executed_at, started_at, completed_at, last_status_check,
	archived, extended_properties, created_at, updated_at
)
VALUES (
	?, ?, ?, ?, ?, ?,
	?, ?, ?, ?, ?, ?,
	?, ?, ?, ?,
	?, ?, ?,
	?, ?, ?, ?, ?,
	?, ?, ?, ?, ?,
	?, ?, ?, ?,
	?, ?, ?, NOW()
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name, owner = EXCLUDED.owner, label = EXCLUDED.label,
	description = EXCLUDED.description, local_workspace = EXCLUDED.local_workspace,
	system = EXCLUDED.system, queue = EXCLUDED.queue, node_type = EXCLUDED.node_type,
	node_count = EXCLUDED.node_count, processes_per_node = EXCLUDED.processes_per_node,
	project_id = EXCLUDED.project_id, max_time_seconds = EXCLUDED.max_time_seconds,
	max_cleanup_time_seconds = EXCLUDED.max_cleanup_time_seconds,
	script = EXCLUDED.script, files = EXCLUDED.files,
	intermediate_interval_seconds = EXCLUDED.intermediate_interval_seconds,
	last_intermediate_transfer = EXCLUDED.last_intermediate_transfer,
	post_process_handler = EXCLUDED.post_process_handler,
	remote_workspace_suffix = EXCLUDED.remote_workspace_suffix,
	work_dir = EXCLUDED.work_dir, home_dir = EXCLUDED.home_dir, archive_dir = EXCLUDED.archive_dir,
	scheduler_job_id = EXCLUDED.scheduler_job_id, status = EXCLUDED.status,
	status_message = EXCLUDED.status_message, qstat = EXCLUDED.qstat, sub_jobs = EXCLUDED.sub_jobs,
	executed_at = EXCLUDED.executed_at, started_at = EXCLUDED.started_at,
	completed_at = EXCLUDED.completed_at, last_status_check = EXCLUDED.last_status_check,
	archived = EXCLUDED.archived, extended_properties = EXCLUDED.extended_properties,
	updated_at = NOW();
`

	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Job
		err := tx.Raw(`SELECT remote_workspace_id FROM job WHERE id = ? FOR UPDATE`, storageJob.ID).
			First(&existing).Error
		if err == nil && existing.RemoteWorkspaceID != storageJob.RemoteWorkspaceID {
			return errors.InvalidArgument(job.EntityJob, fmt.Sprintf("remote workspace id of job %s can not change", jobEntity.Name))
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(job.EntityJob, "unable to lock job "+jobEntity.Name, err)
		}

		result := tx.Exec(upsertJobQuery,
			storageJob.ID, storageJob.Name, storageJob.Owner, storageJob.Label, storageJob.Description, storageJob.LocalWorkspace,
			storageJob.System, storageJob.Queue, storageJob.NodeType, storageJob.NodeCount, storageJob.ProcessesPerNode, storageJob.ProjectID,
			storageJob.MaxTimeSeconds, storageJob.MaxCleanupTimeSeconds, storageJob.Script, storageJob.Files,
			storageJob.IntermediateIntervalSeconds, storageJob.LastIntermediateTransfer, storageJob.PostProcessHandler,
			storageJob.RemoteWorkspaceID, storageJob.RemoteWorkspaceSuffix, storageJob.WorkDir, storageJob.HomeDir, storageJob.ArchiveDir,
			storageJob.SchedulerJobID, storageJob.Status, storageJob.StatusMessage, storageJob.Qstat, storageJob.SubJobs,
			storageJob.ExecutedAt, storageJob.StartedAt, storageJob.CompletedAt, storageJob.LastStatusCheck,
			storageJob.Archived, storageJob.ExtendedProperties, storageJob.CreatedAt)
		if result.Error != nil {
			return errors.Wrap(job.EntityJob, "unable to save job "+jobEntity.Name, result.Error)
		}
		if result.RowsAffected == 0 {
			return errors.InternalError(job.EntityJob, "unable to save job, rows affected 0", nil)
		}
		return nil
	})
}

func (j JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := j.db.WithContext(ctx).Exec(`DELETE FROM job WHERE id = ?`, id)
	if result.Error != nil {
		return errors.Wrap(job.EntityJob, "unable to delete job "+id.String(), result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NotFound(job.EntityJob, "no record for job "+id.String())
	}
	return nil
}

func (j JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM job WHERE id = ?`
	return j.getOne(ctx, "job "+id.String(), query, id)
}

// GetBySchedulerJobID returns the most recently updated job that carries the scheduler id.
func (j JobRepository) GetBySchedulerJobID(ctx context.Context, schedulerJobID string) (*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM job WHERE scheduler_job_id = ? ORDER BY updated_at DESC LIMIT 1`
	return j.getOne(ctx, "scheduler job "+schedulerJobID, query, schedulerJobID)
}

// GetActive returns the submitted jobs that have not reached a terminal status.
func (j JobRepository) GetActive(ctx context.Context) ([]*job.Job, error) {
	var statuses []string
	for _, s := range job.NonTerminalStatuses() {
		statuses = append(statuses, s.String())
	}

	var storageJobs []Job
	query := `SELECT ` + jobColumns + ` FROM job WHERE status IN (?) AND scheduler_job_id <> '' ORDER BY updated_at`
	if err := j.db.WithContext(ctx).Raw(query, statuses).Scan(&storageJobs).Error; err != nil {
		return nil, errors.Wrap(job.EntityJob, "error while getting active jobs", err)
	}

	jobs := make([]*job.Job, 0, len(storageJobs))
	for i := range storageJobs {
		jobEntity, err := fromStorageJob(&storageJobs[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, jobEntity)
	}
	return jobs, nil
}

func (j JobRepository) getOne(ctx context.Context, what, query string, args ...interface{}) (*job.Job, error) {
	var storageJob Job
	if err := j.db.WithContext(ctx).Raw(query, args...).First(&storageJob).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound(job.EntityJob, "no record for "+what)
		}
		return nil, errors.Wrap(job.EntityJob, "error while getting "+what, err)
	}
	return fromStorageJob(&storageJob)
}
