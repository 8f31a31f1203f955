package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/core/job/service"
	"github.com/odpf/hpcjob/internal/errors"
)

func TestHandlerRegistry(t *testing.T) {
	noop := func(context.Context, *job.Job) error { return nil }

	t.Run("returns a registered handler", func(t *testing.T) {
		registry := service.NewHandlerRegistry()
		assert.NoError(t, registry.Register("adh.results", noop))

		handler, err := registry.Lookup("adh.results")

		assert.NoError(t, err)
		assert.NotNil(t, handler)
	})
	t.Run("rejects a duplicate name", func(t *testing.T) {
		registry := service.NewHandlerRegistry()
		assert.NoError(t, registry.Register("adh.results", noop))

		err := registry.Register("adh.results", noop)

		assert.True(t, errors.IsErrorType(err, errors.ErrInvalidArgument))
	})
	t.Run("rejects a nil handler", func(t *testing.T) {
		registry := service.NewHandlerRegistry()

		assert.Error(t, registry.Register("adh.results", nil))
	})
	t.Run("returns handler not found for unknown names", func(t *testing.T) {
		registry := service.NewHandlerRegistry()

		handler, err := registry.Lookup("missing")

		assert.Nil(t, handler)
		assert.True(t, errors.IsErrorType(err, errors.ErrHandlerNotFound))
	})
}
