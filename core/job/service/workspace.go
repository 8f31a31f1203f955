package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/internal/errors"
)

const (
	EnvWorkDir     = "WORKDIR"
	EnvHomeDir     = "HOME"
	EnvArchiveHome = "ARCHIVE_HOME"
)

// WorkspaceResolver derives the remote work/home/archive directories of a job.
// Environment values are cached for the lifetime of the resolver only.
type WorkspaceResolver struct {
	client RemoteClient
	retry  RetryPolicy
	env    *cache.Cache
}

func NewWorkspaceResolver(client RemoteClient, retry RetryPolicy) *WorkspaceResolver {
	return &WorkspaceResolver{
		client: client,
		retry:  retry,
		env:    cache.New(cache.NoExpiration, 0),
	}
}

func (r *WorkspaceResolver) Resolve(ctx context.Context, label, name, workspaceID string) (job.Workspace, error) {
	return r.resolveSuffix(ctx, path.Join(label, name, workspaceID))
}

// ResolveJob resolves the workspace of j once and stores it on the job.
func (r *WorkspaceResolver) ResolveJob(ctx context.Context, j *job.Job) (job.Workspace, error) {
	if j.Workspace.IsResolved() {
		return j.Workspace, nil
	}
	ws, err := r.resolveSuffix(ctx, j.RemoteWorkspaceSuffix())
	if err != nil {
		return job.Workspace{}, err
	}
	j.Workspace = ws
	return ws, nil
}

func (r *WorkspaceResolver) resolveSuffix(ctx context.Context, suffix string) (job.Workspace, error) {
	work, err := r.EnvVar(ctx, EnvWorkDir)
	if err != nil {
		return job.Workspace{}, err
	}
	home, err := r.EnvVar(ctx, EnvHomeDir)
	if err != nil {
		return job.Workspace{}, err
	}
	archive, err := r.EnvVar(ctx, EnvArchiveHome)
	if err != nil {
		return job.Workspace{}, err
	}
	return job.Workspace{
		WorkDir:    path.Join(work, suffix),
		HomeDir:    path.Join(home, suffix),
		ArchiveDir: path.Join(archive, suffix),
	}, nil
}

// EnvVar returns a remote environment value, reading it once per resolver.
func (r *WorkspaceResolver) EnvVar(ctx context.Context, name string) (string, error) {
	if v, ok := r.env.Get(name); ok {
		return v.(string), nil
	}

	var value string
	err := r.retry.Do(ctx, func() error {
		var err error
		value, err = r.client.EnvVar(ctx, name)
		return err
	})
	if err != nil {
		return "", errors.RemoteUnavailable(EntityWorkspace, fmt.Sprintf("unable to read $%s", name), err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.RemoteUnavailable(EntityWorkspace, fmt.Sprintf("$%s is not set on the remote system", name), nil)
	}

	r.env.SetDefault(name, value)
	return value, nil
}
