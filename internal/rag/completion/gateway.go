package completion

import (
	"context"
	"errors"
	"time"

	"github.com/nexabot/knowledge-api/internal/metrics"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

type GatewayConfig struct {
	AttemptTimeout      time.Duration
	ConfigErrorMessage  string
	NetworkErrorMessage string
}

// Gateway walks an ordered backend chain and stops at the first success.
// Exhaustion yields a fixed user-safe message, never an error: the chat UI
// must always receive displayable text.
type Gateway struct {
	backends []Backend
	cfg      GatewayConfig
	logger   *logger_i.Logger
}

func NewGateway(cfg GatewayConfig, backends ...Backend) *Gateway {
	return &Gateway{
		backends: backends,
		cfg:      cfg,
		logger:   logger_i.NewLogger("CompletionGateway"),
	}
}

// Respond assembles the grounded prompt in each backend and cascades through
// them. A timed-out or failed attempt triggers the next backend; the caller
// only notices the added latency.
func (g *Gateway) Respond(ctx context.Context, req Request) Reply {
	attempted := false

	for _, backend := range g.backends {
		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		reply, err := backend.Complete(attemptCtx, req)
		cancel()

		if err == nil {
			metrics.CountCompletionBackendCall(backend.Name(), "success")
			reply.Backend = backend.Name()
			return reply
		}

		if errors.Is(err, ErrNotConfigured) {
			g.logger.Debug("backend skipped", "backend", backend.Name())
			continue
		}

		attempted = true
		metrics.CountCompletionBackendCall(backend.Name(), "failure")
		g.logger.Warn("backend failed, falling back", "backend", backend.Name(), "error", err)
	}

	if attempted {
		metrics.CountCompletionBackendCall("none", "network_error")
		g.logger.Error("all configured completion backends exhausted")
		return Reply{Text: g.cfg.NetworkErrorMessage, Backend: "none"}
	}

	metrics.CountCompletionBackendCall("none", "config_error")
	g.logger.Error("no completion backend configured")
	return Reply{Text: g.cfg.ConfigErrorMessage, Backend: "none"}
}

// BuildSystemPrompt appends the knowledge context, with the directive to
// answer from it and admit uncertainty, onto the system instructions. Every
// backend assembles its prompt through this so the rules stay identical
// across fallbacks.
func BuildSystemPrompt(instructions string, knowledgeContext string, directive string) string {
	if knowledgeContext == "" {
		return instructions
	}
	return instructions + "\n\n" + directive + "\n\nContext:\n" + knowledgeContext
}
