package job

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/internal/errors"
)

// Job is the postgres representation of a job
type Job struct {
	ID             uuid.UUID `gorm:"primary_key;type:uuid;default:uuid_generate_v4()"`
	Name           string    `gorm:"not null"`
	Owner          string    `gorm:"not null"`
	Label          string
	Description    string
	LocalWorkspace string

	System           string `gorm:"not null"`
	Queue            string
	NodeType         string
	NodeCount        int
	ProcessesPerNode int
	ProjectID        string

	MaxTimeSeconds        int64
	MaxCleanupTimeSeconds int64

	Script datatypes.JSON
	Files  datatypes.JSON

	IntermediateIntervalSeconds int64
	LastIntermediateTransfer    *time.Time
	PostProcessHandler          string

	RemoteWorkspaceID     string `gorm:"not null"`
	RemoteWorkspaceSuffix string
	WorkDir               string
	HomeDir               string
	ArchiveDir            string

	SchedulerJobID string
	Status         string `gorm:"not null"`
	StatusMessage  string
	Qstat          datatypes.JSON
	SubJobs        datatypes.JSON

	ExecutedAt      *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastStatusCheck *time.Time

	Archived           bool
	ExtendedProperties datatypes.JSON

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func toStorageJob(j *job.Job) (*Job, error) {
	script, err := json.Marshal(j.Script)
	if err != nil {
		return nil, errors.InternalError(job.EntityJob, "unable to encode script of "+j.Name, err)
	}
	files, err := json.Marshal(j.Files)
	if err != nil {
		return nil, errors.InternalError(job.EntityJob, "unable to encode files of "+j.Name, err)
	}
	qstat, err := toNullableJSON(j.Qstat, len(j.Qstat) == 0)
	if err != nil {
		return nil, errors.InternalError(job.EntityJob, "unable to encode qstat of "+j.Name, err)
	}
	subJobs, err := toNullableJSON(j.SubJobs, len(j.SubJobs) == 0)
	if err != nil {
		return nil, errors.InternalError(job.EntityJob, "unable to encode sub jobs of "+j.Name, err)
	}
	properties, err := json.Marshal(j.ExtendedProperties)
	if err != nil {
		return nil, errors.InternalError(job.EntityJob, "unable to encode extended properties of "+j.Name, err)
	}

	return &Job{
		ID:             j.ID,
		Name:           j.Name,
		Owner:          j.Owner,
		Label:          j.Label,
		Description:    j.Description,
		LocalWorkspace: j.LocalWorkspace,

		System:           j.Placement.System,
		Queue:            j.Placement.Queue,
		NodeType:         j.Placement.NodeType,
		NodeCount:        j.Placement.NodeCount,
		ProcessesPerNode: j.Placement.ProcessesPerNode,
		ProjectID:        j.Placement.ProjectID,

		MaxTimeSeconds:        int64(j.MaxTime / time.Second),
		MaxCleanupTimeSeconds: int64(j.MaxCleanupTime / time.Second),

		Script: script,
		Files:  files,

		IntermediateIntervalSeconds: int64(j.IntermediateInterval / time.Second),
		LastIntermediateTransfer:    toNullableTime(j.LastIntermediateTransfer),
		PostProcessHandler:          j.PostProcessHandler,

		RemoteWorkspaceID:     j.RemoteWorkspaceID,
		RemoteWorkspaceSuffix: j.RemoteWorkspaceSuffix(),
		WorkDir:               j.Workspace.WorkDir,
		HomeDir:               j.Workspace.HomeDir,
		ArchiveDir:            j.Workspace.ArchiveDir,

		SchedulerJobID: j.JobID,
		Status:         j.Status().String(),
		StatusMessage:  j.StatusMessage,
		Qstat:          qstat,
		SubJobs:        subJobs,

		ExecutedAt:      toNullableTime(j.ExecutedAt),
		StartedAt:       toNullableTime(j.StartedAt),
		CompletedAt:     toNullableTime(j.CompletedAt),
		LastStatusCheck: toNullableTime(j.LastStatusCheck),

		Archived:           j.Archived,
		ExtendedProperties: properties,

		CreatedAt: j.CreatedAt,
	}, nil
}

func fromStorageJob(s *Job) (*job.Job, error) {
	status, err := job.StatusFromString(s.Status)
	if err != nil {
		return nil, errors.InternalError(job.EntityJob, "stored job "+s.Name+" has an invalid status", err)
	}

	script := job.NewScriptSpec("")
	if len(s.Script) > 0 {
		if err := json.Unmarshal(s.Script, script); err != nil {
			return nil, errors.InternalError(job.EntityJob, "unable to decode script of "+s.Name, err)
		}
	}

	var files job.Manifest
	if len(s.Files) > 0 {
		if err := json.Unmarshal(s.Files, &files); err != nil {
			return nil, errors.InternalError(job.EntityJob, "unable to decode files of "+s.Name, err)
		}
	}

	var qstat map[string]any
	if len(s.Qstat) > 0 {
		if err := json.Unmarshal(s.Qstat, &qstat); err != nil {
			return nil, errors.InternalError(job.EntityJob, "unable to decode qstat of "+s.Name, err)
		}
	}

	var subJobs []*job.SubJob
	if len(s.SubJobs) > 0 {
		if err := json.Unmarshal(s.SubJobs, &subJobs); err != nil {
			return nil, errors.InternalError(job.EntityJob, "unable to decode sub jobs of "+s.Name, err)
		}
	}

	properties := map[string]any{}
	if len(s.ExtendedProperties) > 0 {
		if err := json.Unmarshal(s.ExtendedProperties, &properties); err != nil {
			return nil, errors.InternalError(job.EntityJob, "unable to decode extended properties of "+s.Name, err)
		}
	}

	j := &job.Job{
		ID:             s.ID,
		Name:           s.Name,
		Owner:          s.Owner,
		Label:          s.Label,
		Description:    s.Description,
		LocalWorkspace: s.LocalWorkspace,
		Placement: job.Placement{
			System:           s.System,
			Queue:            s.Queue,
			NodeType:         s.NodeType,
			NodeCount:        s.NodeCount,
			ProcessesPerNode: s.ProcessesPerNode,
			ProjectID:        s.ProjectID,
		},
		MaxTime:                  time.Duration(s.MaxTimeSeconds) * time.Second,
		MaxCleanupTime:           time.Duration(s.MaxCleanupTimeSeconds) * time.Second,
		Script:                   script,
		Files:                    files,
		IntermediateInterval:     time.Duration(s.IntermediateIntervalSeconds) * time.Second,
		LastIntermediateTransfer: fromNullableTime(s.LastIntermediateTransfer),
		PostProcessHandler:       s.PostProcessHandler,
		RemoteWorkspaceID:        s.RemoteWorkspaceID,
		Workspace: job.Workspace{
			WorkDir:    s.WorkDir,
			HomeDir:    s.HomeDir,
			ArchiveDir: s.ArchiveDir,
		},
		JobID:              s.SchedulerJobID,
		StatusMessage:      s.StatusMessage,
		Qstat:              qstat,
		SubJobs:            subJobs,
		CreatedAt:          s.CreatedAt,
		ExecutedAt:         fromNullableTime(s.ExecutedAt),
		StartedAt:          fromNullableTime(s.StartedAt),
		CompletedAt:        fromNullableTime(s.CompletedAt),
		LastStatusCheck:    fromNullableTime(s.LastStatusCheck),
		Archived:           s.Archived,
		ExtendedProperties: properties,
	}
	j.SetRemoteWorkspaceSuffix(s.RemoteWorkspaceSuffix)
	j.ForceStatus(status)
	return j, nil
}

func toNullableJSON(v any, empty bool) (datatypes.JSON, error) {
	if empty {
		return nil, nil
	}
	return json.Marshal(v)
}

func toNullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func fromNullableTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
