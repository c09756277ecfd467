package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexabot/knowledge-api/internal/metrics"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

// Transport is one strategy for fetching a URL's content. Fetch returns the
// raw text or an error; an attempt is never retried within one resolution.
type Transport struct {
	Name  string
	Fetch func(ctx context.Context, url string) (string, error)
}

// Config is constructed once in main and is read-only afterwards.
type Config struct {
	ManagedFetchURL string //empty disables the managed strategy
	ManagedToken    string
	ReaderBaseURL   string
	RelayProxies    []string //priority order
	AttemptTimeout  time.Duration
	MinContentSize  int
}

// ScrapeUnavailableError is terminal: every transport was exhausted.
type ScrapeUnavailableError struct {
	URL      string
	Attempts int
}

func (e *ScrapeUnavailableError) Error() string {
	return fmt.Sprintf("scrape unavailable for %s after %d transport attempts", e.URL, e.Attempts)
}

type Resolver struct {
	transports []Transport
	cfg        Config
	logger     *logger_i.Logger
}

// NewResolver builds the ordered cascade: managed fetch (when a token is
// configured), the reader service through each relay proxy, then the reader
// directly. Adding or reordering strategies is a data change here, not a
// code change at the call sites.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		cfg:    cfg,
		logger: logger_i.NewLogger("TransportResolver"),
	}
	r.transports = r.buildCascade()
	return r
}

// WithTransports replaces the cascade, used by tests to stub strategies.
func (r *Resolver) WithTransports(transports []Transport) *Resolver {
	r.transports = transports
	return r
}

// Resolve normalizes the URL and walks the cascade, returning the content of
// the first transport that yields more than the minimum size floor. Timeouts
// and undersized bodies fail that attempt only.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	target := NormalizeURL(rawURL)
	log := r.logger.With("url", target)

	attempts := 0
	for _, t := range r.transports {
		attempts++
		start := time.Now()

		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
		content, err := t.Fetch(attemptCtx, target)
		cancel()

		if err != nil {
			metrics.CountTransportAttempt(t.Name, "failure")
			log.Warn("transport attempt failed", "transport", t.Name, "error", err, "latency", time.Since(start))
			continue
		}
		if len(content) < r.cfg.MinContentSize {
			//a 200 with an empty or error page body is still a failure
			metrics.CountTransportAttempt(t.Name, "undersized")
			log.Warn("transport returned undersized content", "transport", t.Name, "size", len(content))
			continue
		}

		metrics.CountTransportAttempt(t.Name, "success")
		log.Debug("transport attempt succeeded", "transport", t.Name, "size", len(content), "latency", time.Since(start))
		return content, nil
	}

	log.Error("all transports exhausted", "attempts", attempts)
	return "", &ScrapeUnavailableError{URL: target, Attempts: attempts}
}

// NormalizeURL prefixes https when the caller omitted a scheme.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return "https://" + trimmed
}
