package job_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/odpf/hpcjob/core/job"
)

func TestEntityJob(t *testing.T) {
	placement := job.Placement{System: "onyx", NodeCount: 1, ProcessesPerNode: 1, ProjectID: "PRJ01"}

	t.Run("NewJob", func(t *testing.T) {
		t.Run("applies defaults and starts pending", func(t *testing.T) {
			j := job.NewJob("model", "user", "app", placement, nil)

			assert.Equal(t, job.StatusPending, j.Status())
			assert.Equal(t, "debug", j.Placement.Queue)
			assert.Equal(t, "compute", j.Placement.NodeType)
			assert.Equal(t, job.DefaultMaxCleanupTime, j.MaxCleanupTime)
			assert.NotNil(t, j.Script)
			assert.NotEmpty(t, j.RemoteWorkspaceID)
		})
		t.Run("generates a distinct workspace id per job", func(t *testing.T) {
			a := job.NewJob("model", "user", "app", placement, nil)
			b := job.NewJob("model", "user", "app", placement, nil)

			assert.NotEqual(t, a.RemoteWorkspaceID, b.RemoteWorkspaceID)
			assert.NotEqual(t, a.RemoteWorkspaceSuffix(), b.RemoteWorkspaceSuffix())
		})
	})
	t.Run("RemoteWorkspaceSuffix is kept after a rename", func(t *testing.T) {
		j := job.NewJob("model", "user", "app", placement, nil)
		suffix := j.RemoteWorkspaceSuffix()

		j.Name = "renamed"

		assert.Equal(t, "app/model/"+j.RemoteWorkspaceID, suffix)
		assert.Equal(t, suffix, j.RemoteWorkspaceSuffix())
	})
	t.Run("ArchiveFilename uses the workspace id", func(t *testing.T) {
		j := job.NewJob("model", "user", "app", placement, nil)

		assert.Equal(t, "job_"+j.RemoteWorkspaceID+".run_files.tar.gz", j.ArchiveFilename())
	})
	t.Run("SwapSchedulerJobID keeps superseded ids", func(t *testing.T) {
		j := job.NewJob("model", "user", "app", placement, nil)
		j.JobID = "J1"

		j.SwapSchedulerJobID("C1")
		j.SwapSchedulerJobID("C1")
		j.SwapSchedulerJobID("C2")

		assert.Equal(t, "C2", j.JobID)
		assert.Equal(t, []string{"J1", "C1"}, j.SupersededJobIDs())
	})
	t.Run("SupersededJobIDs reads ids loaded from storage", func(t *testing.T) {
		j := job.NewJob("model", "user", "app", placement, nil)
		j.SetProperty(job.PropSupersededJobIDs, []any{"J1", "J2"})

		assert.Equal(t, []string{"J1", "J2"}, j.SupersededJobIDs())
	})
	t.Run("IntermediateTransferDue", func(t *testing.T) {
		now := time.Now()

		t.Run("false without intermediate files", func(t *testing.T) {
			j := job.NewJob("model", "user", "app", placement, nil)

			assert.False(t, j.IntermediateTransferDue(now))
		})
		t.Run("zero interval means every poll", func(t *testing.T) {
			j := job.NewJob("model", "user", "app", placement, nil)
			j.Files.TransferIntermediate = []string{"progress.log"}
			j.LastIntermediateTransfer = now

			assert.True(t, j.IntermediateTransferDue(now))
		})
		t.Run("a new job waits a full interval before its first transfer", func(t *testing.T) {
			j := job.NewJob("model", "user", "app", placement, nil)
			j.Files.TransferIntermediate = []string{"progress.log"}
			j.IntermediateInterval = 10 * time.Minute

			assert.Equal(t, j.CreatedAt, j.LastIntermediateTransfer)
			assert.False(t, j.IntermediateTransferDue(time.Now()))
			assert.True(t, j.IntermediateTransferDue(j.CreatedAt.Add(11*time.Minute)))
		})
		t.Run("waits for the interval to elapse", func(t *testing.T) {
			j := job.NewJob("model", "user", "app", placement, nil)
			j.Files.TransferIntermediate = []string{"progress.log"}
			j.IntermediateInterval = 10 * time.Minute
			j.LastIntermediateTransfer = now.Add(-5 * time.Minute)

			assert.False(t, j.IntermediateTransferDue(now))
			assert.True(t, j.IntermediateTransferDue(now.Add(6*time.Minute)))
		})
	})
	t.Run("Validate", func(t *testing.T) {
		t.Run("accepts a complete job", func(t *testing.T) {
			j := job.NewJob("model", "user", "app", placement, nil)
			j.MaxTime = time.Hour

			assert.NoError(t, j.Validate())
		})
		t.Run("rejects missing placement fields", func(t *testing.T) {
			j := job.NewJob("model", "user", "app", job.Placement{System: "onyx"}, nil)
			j.MaxTime = time.Hour

			err := j.Validate()

			assert.Error(t, err)
			assert.Contains(t, err.Error(), "ProjectID")
		})
		t.Run("rejects a missing max time", func(t *testing.T) {
			j := job.NewJob("model", "user", "app", placement, nil)

			assert.Error(t, j.Validate())
		})
	})
}
