package job

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/odpf/hpcjob/internal/errors"
)

const (
	archiveQueue    = "transfer"
	archiveNodeType = "transfer"
	archiveMaxTime  = 48 * time.Hour

	archiveLabelPrefix = "archive_"
	restoreJobName     = "unarchive"
)

// ArchivedScript is the part of the original job needed to rebuild its scheduler script.
type ArchivedScript struct {
	Name             string `mapstructure:"name"`
	ProjectID        string `mapstructure:"project_id"`
	NodeCount        int    `mapstructure:"num_nodes"`
	ProcessesPerNode int    `mapstructure:"processes_per_node"`
	Queue            string `mapstructure:"queue"`
	NodeType         string `mapstructure:"node_type"`
	System           string `mapstructure:"system"`
	MaxTimeSeconds   int64  `mapstructure:"max_time_seconds"`
	ArrayIndices     []int  `mapstructure:"array_indices"`
	ExecutionBlock   string `mapstructure:"execution_block"`

	Directives []Directive        `mapstructure:"directives"`
	Modules    map[string]string `mapstructure:"modules"`
	EnvVars    []EnvVar          `mapstructure:"env_vars"`
}

// ArchivedAttrs is the job-level state of the original job.
type ArchivedAttrs struct {
	Label                 string         `mapstructure:"label"`
	Owner                 string         `mapstructure:"owner"`
	LocalWorkspace        string         `mapstructure:"workspace"`
	Description           string         `mapstructure:"description"`
	RemoteWorkspaceID     string         `mapstructure:"remote_workspace_id"`
	RemoteWorkspaceSuffix string         `mapstructure:"remote_workspace_suffix"`
	ArchiveInput          []string       `mapstructure:"archive_input_files"`
	HomeInput             []string       `mapstructure:"home_input_files"`
	ArchiveOutput         []string       `mapstructure:"archive_output_files"`
	HomeOutput            []string       `mapstructure:"home_output_files"`
	TransferInput         []string       `mapstructure:"transfer_input_files"`
	TransferOutput        []string       `mapstructure:"transfer_output_files"`
	TransferIntermediate  []string       `mapstructure:"transfer_intermediate_files"`
	Metadata              map[string]any `mapstructure:"metadata"`

	PostProcessHandler          string `mapstructure:"post_process_handler"`
	IntermediateIntervalSeconds int64  `mapstructure:"intermediate_interval_seconds"`
	MaxCleanupTimeSeconds       int64  `mapstructure:"max_cleanup_time_seconds"`
}

// ArchiveRecord is carried in the extended properties of an archive job and holds
// everything needed to rebuild the job it archived.
type ArchiveRecord struct {
	ArchivedJobID string
	ArchivedTo    string
	Script        ArchivedScript
	Attrs         ArchivedAttrs
}

func NewArchiveRecord(original *Job, archivedTo string) ArchiveRecord {
	script := ArchivedScript{
		Name:             original.Name,
		ProjectID:        original.Placement.ProjectID,
		NodeCount:        original.Placement.NodeCount,
		ProcessesPerNode: original.Placement.ProcessesPerNode,
		Queue:            original.Placement.Queue,
		NodeType:         original.Placement.NodeType,
		System:           original.Placement.System,
		MaxTimeSeconds:   int64(original.MaxTime / time.Second),
	}
	if original.Script != nil {
		script.ArrayIndices = append([]int{}, original.Script.ArrayIndices...)
		script.ExecutionBlock = original.Script.ExecutionBlock
		clone := original.Script.Clone()
		script.Directives = clone.Directives
		script.Modules = clone.Modules
		script.EnvVars = clone.EnvVars
	}

	metadata := make(map[string]any, len(original.ExtendedProperties))
	for k, v := range original.ExtendedProperties {
		metadata[k] = v
	}

	return ArchiveRecord{
		ArchivedJobID: original.JobID,
		ArchivedTo:    archivedTo,
		Script:        script,
		Attrs: ArchivedAttrs{
			Label:                 original.Label,
			Owner:                 original.Owner,
			LocalWorkspace:        original.LocalWorkspace,
			Description:           original.Description,
			RemoteWorkspaceID:     original.RemoteWorkspaceID,
			RemoteWorkspaceSuffix: original.RemoteWorkspaceSuffix(),
			ArchiveInput:          original.Files.ArchiveInput,
			HomeInput:             original.Files.HomeInput,
			ArchiveOutput:         original.Files.ArchiveOutput,
			HomeOutput:            original.Files.HomeOutput,
			TransferInput:         original.Files.TransferInput,
			TransferOutput:        original.Files.TransferOutput,
			TransferIntermediate:  original.Files.TransferIntermediate,
			Metadata:              metadata,

			PostProcessHandler:          original.PostProcessHandler,
			IntermediateIntervalSeconds: int64(original.IntermediateInterval / time.Second),
			MaxCleanupTimeSeconds:       int64(original.MaxCleanupTime / time.Second),
		},
	}
}

// Store writes the record into the extended properties of the archive job.
func (r ArchiveRecord) Store(archiveJob *Job) error {
	script := map[string]any{}
	if err := mapstructure.Decode(r.Script, &script); err != nil {
		return errors.InternalError(EntityJob, "unable to encode archived job script", err)
	}
	attrs := map[string]any{}
	if err := mapstructure.Decode(r.Attrs, &attrs); err != nil {
		return errors.InternalError(EntityJob, "unable to encode archived job attributes", err)
	}

	archiveJob.SetProperty(PropArchivedJobID, r.ArchivedJobID)
	archiveJob.SetProperty(PropArchivedTo, r.ArchivedTo)
	archiveJob.SetProperty(PropArchivedJobScript, script)
	archiveJob.SetProperty(PropArchivedJobAttrs, attrs)
	return nil
}

// ArchiveRecordFrom reads the record back from an archive job. Values that went
// through JSON come back as generic maps, slices and float64 numbers.
func ArchiveRecordFrom(archiveJob *Job) (ArchiveRecord, error) {
	record := ArchiveRecord{
		ArchivedJobID: archiveJob.StringProperty(PropArchivedJobID),
		ArchivedTo:    archiveJob.StringProperty(PropArchivedTo),
	}
	if record.ArchivedJobID == "" {
		return ArchiveRecord{}, errors.InvalidArgument(EntityJob, fmt.Sprintf("job %s is not an archive job", archiveJob.Name))
	}

	script, ok := archiveJob.ExtendedProperties[PropArchivedJobScript]
	if !ok {
		return ArchiveRecord{}, errors.InvalidArgument(EntityJob, "archive job has no archived job script")
	}
	if err := decodeWeak(script, &record.Script); err != nil {
		return ArchiveRecord{}, errors.InternalError(EntityJob, "unable to decode archived job script", err)
	}

	attrs, ok := archiveJob.ExtendedProperties[PropArchivedJobAttrs]
	if !ok {
		return ArchiveRecord{}, errors.InvalidArgument(EntityJob, "archive job has no archived job attributes")
	}
	if err := decodeWeak(attrs, &record.Attrs); err != nil {
		return ArchiveRecord{}, errors.InternalError(EntityJob, "unable to decode archived job attributes", err)
	}
	return record, nil
}

func decodeWeak(input, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// NewArchiveJob builds the synthetic job that tars the workspace of original and pushes
// it to archive storage. It shares the remote workspace of the original job.
func NewArchiveJob(original *Job, archiveDir string) *Job {
	archiveFile := original.ArchiveFilename()
	script := NewScriptSpec(fmt.Sprintf("tar -czf %s *\narchive put -p -C %s %s\nrm %s\n",
		archiveFile, archiveDir, archiveFile, archiveFile))

	archiveJob := NewJob("archive", original.Owner, archiveLabelPrefix+original.Label, Placement{
		System:           original.Placement.System,
		Queue:            archiveQueue,
		NodeType:         archiveNodeType,
		NodeCount:        1,
		ProcessesPerNode: 1,
		ProjectID:        original.Placement.ProjectID,
	}, script)
	archiveJob.MaxTime = archiveMaxTime
	archiveJob.Description = fmt.Sprintf("Archive job: %s (%s)", original.Name, original.JobID)
	archiveJob.RemoteWorkspaceID = original.RemoteWorkspaceID
	archiveJob.SetRemoteWorkspaceSuffix(original.RemoteWorkspaceSuffix())
	archiveJob.Workspace = original.Workspace
	return archiveJob
}

// PrepareRestore rewrites an archive job so that running it fetches and extracts the tarball.
func PrepareRestore(archiveJob *Job, archiveDir string) {
	archiveFile := archiveJob.ArchiveFilename()
	archiveJob.Script.ExecutionBlock = fmt.Sprintf("archive get -p -C %s %s\ntar -xzf %s\nrm %s\n",
		archiveDir, archiveFile, archiveFile, archiveFile)
	archiveJob.Name = restoreJobName
}

// Rebuild reconstructs the archived job. The result is Completed: its output is the
// restored workspace.
func (r ArchiveRecord) Rebuild(archiveJob *Job) *Job {
	script := NewScriptSpec(r.Script.ExecutionBlock)
	if len(r.Script.ArrayIndices) > 0 {
		script.ArrayIndices = append([]int{}, r.Script.ArrayIndices...)
	}
	script.Directives = append(script.Directives, r.Script.Directives...)
	for name, action := range r.Script.Modules {
		script.Modules[name] = action
	}
	script.EnvVars = append(script.EnvVars, r.Script.EnvVars...)

	owner := r.Attrs.Owner
	if owner == "" {
		owner = archiveJob.Owner
	}
	restored := NewJob(r.Script.Name, owner, r.Attrs.Label, Placement{
		System:           r.Script.System,
		Queue:            r.Script.Queue,
		NodeType:         r.Script.NodeType,
		NodeCount:        r.Script.NodeCount,
		ProcessesPerNode: r.Script.ProcessesPerNode,
		ProjectID:        r.Script.ProjectID,
	}, script)
	restored.MaxTime = time.Duration(r.Script.MaxTimeSeconds) * time.Second
	restored.Description = r.Attrs.Description
	restored.PostProcessHandler = r.Attrs.PostProcessHandler
	restored.IntermediateInterval = time.Duration(r.Attrs.IntermediateIntervalSeconds) * time.Second
	if r.Attrs.MaxCleanupTimeSeconds > 0 {
		restored.MaxCleanupTime = time.Duration(r.Attrs.MaxCleanupTimeSeconds) * time.Second
	}
	restored.LocalWorkspace = r.Attrs.LocalWorkspace
	restored.RemoteWorkspaceID = r.Attrs.RemoteWorkspaceID
	restored.SetRemoteWorkspaceSuffix(r.Attrs.RemoteWorkspaceSuffix)
	restored.Workspace = archiveJob.Workspace
	restored.Files = Manifest{
		ArchiveInput:         r.Attrs.ArchiveInput,
		HomeInput:            r.Attrs.HomeInput,
		ArchiveOutput:        r.Attrs.ArchiveOutput,
		HomeOutput:           r.Attrs.HomeOutput,
		TransferInput:        r.Attrs.TransferInput,
		TransferOutput:       r.Attrs.TransferOutput,
		TransferIntermediate: r.Attrs.TransferIntermediate,
	}
	for k, v := range r.Attrs.Metadata {
		restored.SetProperty(k, v)
	}
	restored.JobID = r.ArchivedJobID
	restored.ForceStatus(StatusCompleted)
	restored.CompletedAt = time.Now()
	return restored
}
