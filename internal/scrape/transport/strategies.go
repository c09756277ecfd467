package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nexabot/knowledge-api/internal/customHttpClient"
)

func (r *Resolver) buildCascade() []Transport {
	var cascade []Transport

	if r.cfg.ManagedFetchURL != "" && r.cfg.ManagedToken != "" {
		cascade = append(cascade, Transport{Name: "managed", Fetch: r.managedFetch})
	}

	for i, relay := range r.cfg.RelayProxies {
		relayPrefix := relay
		name := fmt.Sprintf("reader-relay-%d", i)
		cascade = append(cascade, Transport{
			Name: name,
			Fetch: func(ctx context.Context, target string) (string, error) {
				return r.fetchBody(ctx, relayPrefix+url.QueryEscape(r.readerURL(target)), nil)
			},
		})
	}

	//last resort: reader service without a relay
	cascade = append(cascade, Transport{
		Name: "reader-direct",
		Fetch: func(ctx context.Context, target string) (string, error) {
			return r.fetchBody(ctx, r.readerURL(target), nil)
		},
	})

	return cascade
}

func (r *Resolver) readerURL(target string) string {
	return strings.TrimSuffix(r.cfg.ReaderBaseURL, "/") + "/" + target
}

// managedFetch asks the authenticated server-side fetcher to pull the page;
// it sidesteps cross-origin blocks and is preferred when a session exists.
func (r *Resolver) managedFetch(ctx context.Context, target string) (string, error) {
	endpoint := strings.TrimSuffix(r.cfg.ManagedFetchURL, "/") + "/fetch?url=" + url.QueryEscape(target)
	headers := map[string]string{"Authorization": "Bearer " + r.cfg.ManagedToken}
	return r.fetchBody(ctx, endpoint, headers)
}

func (r *Resolver) fetchBody(ctx context.Context, endpoint string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "text/plain, text/markdown, text/html")

	resp, err := customHttpClient.GetPooledClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return string(body), nil
}
