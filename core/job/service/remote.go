package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/odpf/hpcjob/core/job"
)

// RemoteClient is a connection to one HPC system.
type RemoteClient interface {
	Connect(ctx context.Context, token string) error
	IsConnected() bool

	// Call runs a shell command in workingDir and returns its stdout.
	Call(ctx context.Context, command, workingDir string) (string, error)
	PutFile(ctx context.Context, localPath, remotePath string) error
	GetFile(ctx context.Context, remotePath, localPath string) error
	ListDir(ctx context.Context, dir string) ([]string, error)
	EnvVar(ctx context.Context, name string) (string, error)

	// Submit writes script to remoteName inside workingDir and queues it, returning the scheduler job id.
	Submit(ctx context.Context, script, workingDir, remoteName string) (string, error)
	// Status returns the scheduler snapshot of a job, nil when the scheduler no longer knows it.
	Status(ctx context.Context, jobID string) (*job.Qstat, error)
	Hold(ctx context.Context, jobID string) error
	Release(ctx context.Context, jobID string) error
	Terminate(ctx context.Context, jobID string) error

	Close() error
}

type ClientFactory interface {
	NewClient(system string) RemoteClient
}

// TokenProvider resolves the bearer token of a job owner.
type TokenProvider interface {
	Token(ctx context.Context, owner string) (string, error)
}

type JobRepository interface {
	Save(ctx context.Context, j *job.Job) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*job.Job, error)
	GetBySchedulerJobID(ctx context.Context, jobID string) (*job.Job, error)
	GetActive(ctx context.Context) ([]*job.Job, error)
}

type SystemRegistry interface {
	IsDecommissioned(system string) bool
}

// DecommissionedSystems is a fixed set of systems that no longer accept remote calls.
type DecommissionedSystems map[string]struct{}

func NewDecommissionedSystems(systems ...string) DecommissionedSystems {
	set := DecommissionedSystems{}
	for _, s := range systems {
		set[s] = struct{}{}
	}
	return set
}

func (d DecommissionedSystems) IsDecommissioned(system string) bool {
	_, ok := d[system]
	return ok
}
