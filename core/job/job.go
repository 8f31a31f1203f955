package job

import (
	"path"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const (
	EntityJob = "job"

	// extended property keys
	PropCleanupJobID        = "cleanup_job_id"
	PropPostProcessingJobID = "post_processing_job_id"
	PropPostProcessScript   = "post_processing_script"
	PropArchivedJobID       = "archived_job_id"
	PropArchivedTo          = "archived_to"
	PropArchivedJobScript   = "archived_job_script"
	PropArchivedJobAttrs    = "archived_job_attrs"
	PropOtherStatus         = "other_status"
	PropSupersededJobIDs    = "superseded_job_ids"
	PropSystemDecommission  = "system_decommissioned"

	defaultQueue    = "debug"
	defaultNodeType = "compute"

	DefaultMaxCleanupTime = time.Hour
)

type Placement struct {
	System           string
	Queue            string
	NodeType         string
	NodeCount        int
	ProcessesPerNode int
	ProjectID        string
}

// Manifest holds every file list moved in or out of the remote workspace.
type Manifest struct {
	ArchiveInput         []string `json:"archive_input"`
	HomeInput            []string `json:"home_input"`
	ArchiveOutput        []string `json:"archive_output"`
	HomeOutput           []string `json:"home_output"`
	TransferInput        []string `json:"transfer_input"`
	TransferOutput       []string `json:"transfer_output"`
	TransferIntermediate []string `json:"transfer_intermediate"`
}

// Workspace is the remote directory triad of a job.
type Workspace struct {
	WorkDir    string
	HomeDir    string
	ArchiveDir string
}

func (w Workspace) IsResolved() bool {
	return w.WorkDir != "" && w.HomeDir != "" && w.ArchiveDir != ""
}

// SubJob is one member of an array job, tracked independently of its siblings.
type SubJob struct {
	JobID     string         `json:"job_id"`
	Index     int            `json:"index"`
	RawStatus string         `json:"raw_status"`
	Status    Status         `json:"status"`
	Qstat     map[string]any `json:"qstat,omitempty"`
}

type Job struct {
	ID          uuid.UUID
	Name        string
	Owner       string
	Label       string
	Description string

	// LocalWorkspace is the directory on this host that receives transferred results.
	LocalWorkspace string

	Placement      Placement
	MaxTime        time.Duration
	MaxCleanupTime time.Duration

	Script *ScriptSpec
	Files  Manifest

	IntermediateInterval     time.Duration
	LastIntermediateTransfer time.Time
	PostProcessHandler       string

	RemoteWorkspaceID string
	remoteSuffix      string
	Workspace         Workspace

	JobID         string
	status        Status
	StatusMessage string
	Qstat         map[string]any
	SubJobs       []*SubJob

	CreatedAt       time.Time
	ExecutedAt      time.Time
	StartedAt       time.Time
	CompletedAt     time.Time
	LastStatusCheck time.Time

	Archived           bool
	ExtendedProperties map[string]any
}

// NewJob creates a Pending job with a fresh remote workspace id.
func NewJob(name, owner, label string, placement Placement, script *ScriptSpec) *Job {
	if placement.Queue == "" {
		placement.Queue = defaultQueue
	}
	if placement.NodeType == "" {
		placement.NodeType = defaultNodeType
	}
	if script == nil {
		script = NewScriptSpec("")
	}
	now := time.Now()
	return &Job{
		ID:                 uuid.New(),
		Name:               name,
		Owner:              owner,
		Label:              label,
		Placement:          placement,
		MaxCleanupTime:     DefaultMaxCleanupTime,
		Script:             script,
		RemoteWorkspaceID:  uuid.NewString(),
		status:             StatusPending,
		CreatedAt:          now,
		ExtendedProperties: map[string]any{},

		LastIntermediateTransfer: now,
	}
}

func (j *Job) Status() Status {
	return j.status
}

// RemoteWorkspaceSuffix is label/name/workspace-id. It is computed once and then kept,
// so renaming a job never moves its remote directories.
func (j *Job) RemoteWorkspaceSuffix() string {
	if j.remoteSuffix == "" {
		j.remoteSuffix = path.Join(j.Label, j.Name, j.RemoteWorkspaceID)
	}
	return j.remoteSuffix
}

// SetRemoteWorkspaceSuffix restores a suffix that was computed earlier.
func (j *Job) SetRemoteWorkspaceSuffix(suffix string) {
	j.remoteSuffix = suffix
}

func (j *Job) IsArrayJob() bool {
	return j.Script != nil && len(j.Script.ArrayIndices) > 0
}

// ArchiveFilename is the tarball name the archive job writes for this workspace.
func (j *Job) ArchiveFilename() string {
	return "job_" + j.RemoteWorkspaceID + ".run_files.tar.gz"
}

func (j *Job) StringProperty(key string) string {
	if j.ExtendedProperties == nil {
		return ""
	}
	v, _ := j.ExtendedProperties[key].(string)
	return v
}

func (j *Job) SetProperty(key string, value any) {
	if j.ExtendedProperties == nil {
		j.ExtendedProperties = map[string]any{}
	}
	j.ExtendedProperties[key] = value
}

func (j *Job) DeleteProperty(key string) {
	delete(j.ExtendedProperties, key)
}

// SwapSchedulerJobID makes newID the current scheduler id and keeps the superseded one in history.
func (j *Job) SwapSchedulerJobID(newID string) {
	if j.JobID != "" && j.JobID != newID {
		history := j.SupersededJobIDs()
		j.SetProperty(PropSupersededJobIDs, append(history, j.JobID))
	}
	j.JobID = newID
}

func (j *Job) SupersededJobIDs() []string {
	var ids []string
	switch v := j.ExtendedProperties[PropSupersededJobIDs].(type) {
	case []string:
		ids = append(ids, v...)
	case []any:
		for _, id := range v {
			if s, ok := id.(string); ok {
				ids = append(ids, s)
			}
		}
	}
	return ids
}

// IntermediateTransferDue reports whether intermediate files should be fetched at now.
// A zero interval means every poll.
func (j *Job) IntermediateTransferDue(now time.Time) bool {
	if len(j.Files.TransferIntermediate) == 0 {
		return false
	}
	if j.IntermediateInterval == 0 {
		return true
	}
	return now.Sub(j.LastIntermediateTransfer) > j.IntermediateInterval
}

func (j *Job) Validate() error {
	return validation.ValidateStruct(j,
		validation.Field(&j.Name, validation.Required),
		validation.Field(&j.Owner, validation.Required),
		validation.Field(&j.RemoteWorkspaceID, validation.Required),
		validation.Field(&j.MaxTime, validation.Required, validation.Min(time.Minute)),
		validation.Field(&j.Placement, validation.By(func(interface{}) error {
			p := j.Placement
			return validation.ValidateStruct(&p,
				validation.Field(&p.System, validation.Required),
				validation.Field(&p.Queue, validation.Required),
				validation.Field(&p.ProjectID, validation.Required),
				validation.Field(&p.NodeCount, validation.Required, validation.Min(1)),
				validation.Field(&p.ProcessesPerNode, validation.Required, validation.Min(1)),
			)
		})),
	)
}
