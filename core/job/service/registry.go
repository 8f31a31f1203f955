package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/internal/errors"
)

const (
	EntityHandler   = "post_process_handler"
	EntityWorkspace = "workspace"
	EntityRemote    = "remote"
)

// PostProcessor runs after intermediate or final results of a job were transferred.
type PostProcessor func(ctx context.Context, j *job.Job) error

// HandlerRegistry maps the handler names stored on jobs to post-processing functions.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]PostProcessor
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: map[string]PostProcessor{}}
}

func (r *HandlerRegistry) Register(name string, handler PostProcessor) error {
	if name == "" || handler == nil {
		return errors.InvalidArgument(EntityHandler, "handler name and function are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; ok {
		return errors.InvalidArgument(EntityHandler, fmt.Sprintf("handler %s is already registered", name))
	}
	r.handlers[name] = handler
	return nil
}

func (r *HandlerRegistry) Lookup(name string) (PostProcessor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[name]
	if !ok {
		return nil, errors.HandlerNotFound(EntityHandler, fmt.Sprintf("handler %s is not registered", name))
	}
	return handler, nil
}
