package config_test

import (
	"testing"

	"github.com/odpf/salt/log"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"

	"github.com/odpf/hpcjob/config"
)

func TestInitTelemetry(t *testing.T) {
	t.Run("registers a jaeger tracer provider", func(t *testing.T) {
		previous := otel.GetTracerProvider()
		defer otel.SetTracerProvider(previous)

		shutdown, err := config.InitTelemetry(log.NewNoop(), config.TelemetryConfig{
			JaegerAddr: "http://localhost:14268/api/traces",
		})

		assert.NoError(t, err)
		assert.IsType(t, &tracesdk.TracerProvider{}, otel.GetTracerProvider())
		shutdown()
	})
	t.Run("leaves tracing disabled without a collector", func(t *testing.T) {
		previous := otel.GetTracerProvider()

		shutdown, err := config.InitTelemetry(log.NewNoop(), config.TelemetryConfig{})

		assert.NoError(t, err)
		assert.Equal(t, previous, otel.GetTracerProvider())
		shutdown()
	})
}
