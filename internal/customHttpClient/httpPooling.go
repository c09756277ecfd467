package customHttpClient

import (
	"net/http"
	"sync"

	"github.com/nexabot/knowledge-api/internal/config"
)

var (
	pooled *http.Client
	once   sync.Once
)

// GetPooledClient returns the shared connection-pooled client used by the
// transport cascade, the managed completion backend and the CRM client.
// Per-attempt timeouts are carried by the request context, not the client.
func GetPooledClient() *http.Client {
	once.Do(func() {
		pooled = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        config.MaxIdleConns,
				MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
				IdleConnTimeout:     config.IdleConnTimeout,
			},
		}
	})
	return pooled
}
