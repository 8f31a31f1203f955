package uit

import (
	"net/http"

	"github.com/odpf/salt/log"
	"github.com/spf13/afero"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/odpf/hpcjob/config"
	"github.com/odpf/hpcjob/core/job/service"
)

// ClientFactory hands out a fresh client per system; clients are never shared
// between job controllers.
type ClientFactory struct {
	l      log.Logger
	client HTTPClient
	fs     afero.Fs
	host   string
}

func NewClientFactory(l log.Logger, conf config.RemoteConfig, fs afero.Fs) *ClientFactory {
	return &ClientFactory{
		l:      l,
		client: &http.Client{
			Timeout:   conf.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		fs:     fs,
		host:   conf.Host,
	}
}

func (f *ClientFactory) NewClient(system string) service.RemoteClient {
	return NewClient(f.l, f.client, f.fs, f.host, system)
}
