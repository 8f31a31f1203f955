package service_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/core/job/service"
)

// RemoteClient is a mock type for the RemoteClient type
type RemoteClient struct {
	mock.Mock
}

func (_m *RemoteClient) Connect(ctx context.Context, token string) error {
	ret := _m.Called(ctx, token)
	return ret.Error(0)
}

func (_m *RemoteClient) IsConnected() bool {
	ret := _m.Called()
	return ret.Bool(0)
}

func (_m *RemoteClient) Call(ctx context.Context, command, workingDir string) (string, error) {
	ret := _m.Called(ctx, command, workingDir)
	return ret.String(0), ret.Error(1)
}

func (_m *RemoteClient) PutFile(ctx context.Context, localPath, remotePath string) error {
	ret := _m.Called(ctx, localPath, remotePath)
	return ret.Error(0)
}

func (_m *RemoteClient) GetFile(ctx context.Context, remotePath, localPath string) error {
	ret := _m.Called(ctx, remotePath, localPath)
	return ret.Error(0)
}

func (_m *RemoteClient) ListDir(ctx context.Context, dir string) ([]string, error) {
	ret := _m.Called(ctx, dir)

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}

func (_m *RemoteClient) EnvVar(ctx context.Context, name string) (string, error) {
	ret := _m.Called(ctx, name)
	return ret.String(0), ret.Error(1)
}

func (_m *RemoteClient) Submit(ctx context.Context, script, workingDir, remoteName string) (string, error) {
	ret := _m.Called(ctx, script, workingDir, remoteName)
	return ret.String(0), ret.Error(1)
}

func (_m *RemoteClient) Status(ctx context.Context, jobID string) (*job.Qstat, error) {
	ret := _m.Called(ctx, jobID)

	var r0 *job.Qstat
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*job.Qstat)
	}
	return r0, ret.Error(1)
}

func (_m *RemoteClient) Hold(ctx context.Context, jobID string) error {
	ret := _m.Called(ctx, jobID)
	return ret.Error(0)
}

func (_m *RemoteClient) Release(ctx context.Context, jobID string) error {
	ret := _m.Called(ctx, jobID)
	return ret.Error(0)
}

func (_m *RemoteClient) Terminate(ctx context.Context, jobID string) error {
	ret := _m.Called(ctx, jobID)
	return ret.Error(0)
}

func (_m *RemoteClient) Close() error {
	ret := _m.Called()
	return ret.Error(0)
}

type mockConstructorTestingTNewRemoteClient interface {
	mock.TestingT
	Cleanup(func())
}

// NewRemoteClient creates a new instance of RemoteClient. It also registers a cleanup function to assert the mocks expectations.
func NewRemoteClient(t mockConstructorTestingTNewRemoteClient) *RemoteClient {
	mock := &RemoteClient{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

// ClientFactory is a mock type for the ClientFactory type
type ClientFactory struct {
	mock.Mock
}

func (_m *ClientFactory) NewClient(system string) service.RemoteClient {
	ret := _m.Called(system)

	var r0 service.RemoteClient
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(service.RemoteClient)
	}
	return r0
}

// TokenProvider is a mock type for the TokenProvider type
type TokenProvider struct {
	mock.Mock
}

func (_m *TokenProvider) Token(ctx context.Context, owner string) (string, error) {
	ret := _m.Called(ctx, owner)
	return ret.String(0), ret.Error(1)
}

// JobRepository is a mock type for the JobRepository type
type JobRepository struct {
	mock.Mock
}

func (_m *JobRepository) Save(ctx context.Context, j *job.Job) error {
	ret := _m.Called(ctx, j)
	return ret.Error(0)
}

func (_m *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

func (_m *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	ret := _m.Called(ctx, id)

	var r0 *job.Job
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*job.Job)
	}
	return r0, ret.Error(1)
}

func (_m *JobRepository) GetBySchedulerJobID(ctx context.Context, jobID string) (*job.Job, error) {
	ret := _m.Called(ctx, jobID)

	var r0 *job.Job
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*job.Job)
	}
	return r0, ret.Error(1)
}

func (_m *JobRepository) GetActive(ctx context.Context) ([]*job.Job, error) {
	ret := _m.Called(ctx)

	var r0 []*job.Job
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*job.Job)
	}
	return r0, ret.Error(1)
}

type mockConstructorTestingTNewJobRepository interface {
	mock.TestingT
	Cleanup(func())
}

// NewJobRepository creates a new instance of JobRepository. It also registers a cleanup function to assert the mocks expectations.
func NewJobRepository(t mockConstructorTestingTNewJobRepository) *JobRepository {
	mock := &JobRepository{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
