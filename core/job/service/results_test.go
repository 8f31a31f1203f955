package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/odpf/hpcjob/core/job"
)

func writeOnGet(fs afero.Fs) func(mock.Arguments) {
	return func(args mock.Arguments) {
		_ = afero.WriteFile(fs, args.String(2), []byte("result"), 0o644)
	}
}

func TestControllerResults(t *testing.T) {
	ctx := context.Background()

	t.Run("GetRemoteFiles", func(t *testing.T) {
		t.Run("attempts every file and reports a partial failure", func(t *testing.T) {
			f := newFixture(t, true)
			j := submittedJob(job.StatusRunning)
			f.client.On("GetFile", mock.Anything, workDir+"/a.out", "/local/ws/a.out").Run(writeOnGet(f.fs)).Return(nil).Once()
			f.client.On("GetFile", mock.Anything, workDir+"/b.out", "/local/ws/b.out").Return(errors.New("no such file")).Once()

			ok := f.svc.Controller(j).GetRemoteFiles(ctx, []string{"a.out", "b.out"})

			assert.False(t, ok)
			exists, _ := afero.Exists(f.fs, "/local/ws/a.out")
			assert.True(t, exists)
		})
		t.Run("fails when the transfer left no file behind", func(t *testing.T) {
			f := newFixture(t, true)
			j := submittedJob(job.StatusRunning)
			f.client.On("GetFile", mock.Anything, workDir+"/a.out", "/local/ws/a.out").Return(nil).Once()

			ok := f.svc.Controller(j).GetRemoteFiles(ctx, []string{"a.out"})

			assert.False(t, ok)
		})
		t.Run("keeps the directory layout and expands array placeholders", func(t *testing.T) {
			f := newFixture(t, true)
			j := submittedJob(job.StatusRunning)
			j.Script.ArrayIndices = []int{0, 1}
			f.client.On("GetFile", mock.Anything, workDir+"/run_0/out.dat", "/local/ws/run_0/out.dat").Run(writeOnGet(f.fs)).Return(nil).Once()
			f.client.On("GetFile", mock.Anything, workDir+"/run_1/out.dat", "/local/ws/run_1/out.dat").Run(writeOnGet(f.fs)).Return(nil).Once()
			f.client.On("GetFile", mock.Anything, workDir+"/log_1.txt", "/local/ws/log_1.txt").Run(writeOnGet(f.fs)).Return(nil).Once()
			f.client.On("GetFile", mock.Anything, workDir+"/log_0.txt", "/local/ws/log_0.txt").Run(writeOnGet(f.fs)).Return(nil).Once()

			ok := f.svc.Controller(j).GetRemoteFiles(ctx, []string{"$RUN_DIR/out.dat", "log_$JOB_INDEX.txt"})

			assert.True(t, ok)
			exists, _ := afero.DirExists(f.fs, "/local/ws/run_1")
			assert.True(t, exists)
		})
		t.Run("requires a local workspace", func(t *testing.T) {
			f := newFixture(t, true)
			j := submittedJob(job.StatusRunning)
			j.LocalWorkspace = ""

			assert.False(t, f.svc.Controller(j).GetRemoteFiles(ctx, []string{"a.out"}))
			f.client.AssertNotCalled(t, "GetFile", mock.Anything, mock.Anything, mock.Anything)
		})
		t.Run("succeeds without files", func(t *testing.T) {
			f := newFixture(t, true)

			assert.True(t, f.svc.Controller(submittedJob(job.StatusRunning)).GetRemoteFiles(ctx, nil))
		})
	})

	t.Run("ProcessResults", func(t *testing.T) {
		t.Run("completes the job even when some files are missing", func(t *testing.T) {
			f := newFixture(t, true)
			j := submittedJob(job.StatusRunning)
			j.Files.TransferOutput = []string{"a.out"}
			j.PostProcessHandler = "summary"
			var seen *job.Job
			assert.NoError(t, f.handlers.Register("summary", func(_ context.Context, processed *job.Job) error {
				seen = processed
				return errors.New("summary failed")
			}))
			f.client.On("GetFile", mock.Anything, workDir+"/a.out", "/local/ws/a.out").Return(errors.New("timeout")).Once()
			f.repo.On("Save", mock.Anything, j).Return(nil).Once()

			ok := f.svc.Controller(j).ProcessResults(ctx)

			assert.False(t, ok)
			assert.Equal(t, job.StatusCompleted, j.Status())
			assert.Equal(t, "Some result files could not be transferred.", j.StatusMessage)
			assert.False(t, j.CompletedAt.IsZero())
			assert.Same(t, j, seen)
		})
	})
}
