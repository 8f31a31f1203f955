package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/core/job/service"
	hpcerrors "github.com/odpf/hpcjob/internal/errors"
)

func TestWorkspaceResolver(t *testing.T) {
	ctx := context.Background()
	policy := service.RetryPolicy{MaxAttempts: 1}

	t.Run("resolves distinct directories sharing the workspace suffix", func(t *testing.T) {
		client := NewRemoteClient(t)
		client.On("EnvVar", mock.Anything, "WORKDIR").Return("/p/work/user", nil).Once()
		client.On("EnvVar", mock.Anything, "HOME").Return("/p/home/user\n", nil).Once()
		client.On("EnvVar", mock.Anything, "ARCHIVE_HOME").Return("/archive/user", nil).Once()
		resolver := service.NewWorkspaceResolver(client, policy)

		first, err := resolver.Resolve(ctx, "app", "model", "ws-1")
		assert.NoError(t, err)
		second, err := resolver.Resolve(ctx, "app", "model", "ws-1")
		assert.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, "/p/work/user/app/model/ws-1", first.WorkDir)
		assert.Equal(t, "/p/home/user/app/model/ws-1", first.HomeDir)
		assert.Equal(t, "/archive/user/app/model/ws-1", first.ArchiveDir)
		for _, dir := range []string{first.WorkDir, first.HomeDir, first.ArchiveDir} {
			assert.True(t, strings.HasSuffix(dir, "app/model/ws-1"))
		}
		assert.NotEqual(t, first.WorkDir, first.HomeDir)
		assert.NotEqual(t, first.HomeDir, first.ArchiveDir)
	})
	t.Run("stores the workspace on the job", func(t *testing.T) {
		client := NewRemoteClient(t)
		client.On("EnvVar", mock.Anything, mock.Anything).Return("/root", nil).Times(3)
		resolver := service.NewWorkspaceResolver(client, policy)
		j := job.NewJob("model", "user", "app", job.Placement{System: "onyx"}, nil)

		ws, err := resolver.ResolveJob(ctx, j)

		assert.NoError(t, err)
		assert.Equal(t, ws, j.Workspace)
		assert.Equal(t, "/root/"+j.RemoteWorkspaceSuffix(), ws.WorkDir)

		again, err := resolver.ResolveJob(ctx, j)
		assert.NoError(t, err)
		assert.Equal(t, ws, again)
	})
	t.Run("returns remote unavailable when the environment can not be read", func(t *testing.T) {
		client := NewRemoteClient(t)
		client.On("EnvVar", mock.Anything, "WORKDIR").Return("", errors.New("connection refused"))
		resolver := service.NewWorkspaceResolver(client, policy)

		_, err := resolver.Resolve(ctx, "app", "model", "ws-1")

		assert.True(t, hpcerrors.IsErrorType(err, hpcerrors.ErrRemoteUnavailable))
		assert.Contains(t, err.Error(), "connection refused")
	})
	t.Run("returns remote unavailable for an empty value", func(t *testing.T) {
		client := NewRemoteClient(t)
		client.On("EnvVar", mock.Anything, "WORKDIR").Return("  ", nil)
		resolver := service.NewWorkspaceResolver(client, policy)

		_, err := resolver.Resolve(ctx, "app", "model", "ws-1")

		assert.True(t, hpcerrors.IsErrorType(err, hpcerrors.ErrRemoteUnavailable))
	})
}
