package uit

import (
	"net/http"
	"testing"
	"time"

	"github.com/odpf/salt/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/odpf/hpcjob/config"
)

func TestClientFactory(t *testing.T) {
	factory := NewClientFactory(log.NewNoop(), config.RemoteConfig{
		Host:    "https://uitplus.test/",
		Timeout: 30 * time.Second,
	}, afero.NewMemMapFs())

	t.Run("traces remote calls", func(t *testing.T) {
		httpClient, ok := factory.client.(*http.Client)
		require.True(t, ok)

		assert.Equal(t, 30*time.Second, httpClient.Timeout)
		assert.IsType(t, &otelhttp.Transport{}, httpClient.Transport)
	})
	t.Run("hands out a fresh client per call", func(t *testing.T) {
		first := factory.NewClient("onyx").(*Client)
		second := factory.NewClient("onyx").(*Client)

		assert.NotSame(t, first, second)
		assert.Equal(t, "https://uitplus.test", first.host)
		assert.Equal(t, "onyx", first.system)
	})
}
