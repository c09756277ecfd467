package leads

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/internal/metrics"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Notifier delivers a candidate to the CRM collaborator, which owns true
// (cross-session) de-duplication.
type Notifier interface {
	CreateLead(ctx context.Context, candidate knowledgeModel.LeadCandidate) error
}

// Extractor scans user turns for contact signals. Detection is best-effort
// and fully decoupled from completion delivery: it runs on its own
// goroutine and every failure is swallowed after a log line.
type Extractor struct {
	notifier Notifier
	mu       sync.Mutex
	seen     map[string]map[string]bool //sessionId -> match -> emitted
	logger   *logger_i.Logger
}

func NewExtractor(notifier Notifier) *Extractor {
	return &Extractor{
		notifier: notifier,
		seen:     make(map[string]map[string]bool),
		logger:   logger_i.NewLogger("LeadExtractor"),
	}
}

// ScanTurn emits one candidate per distinct match not yet seen in this
// session. Callers fire it on a separate goroutine; it never returns an
// error.
func (e *Extractor) ScanTurn(ctx context.Context, botId string, sessionId string, text string) {
	for _, email := range FindEmails(text) {
		if !e.markSeen(sessionId, email) {
			continue
		}

		candidate := knowledgeModel.LeadCandidate{
			BotId:      botId,
			Email:      email,
			DetectedAt: time.Now(),
		}
		metrics.CountLeadCandidate()

		if err := e.notifier.CreateLead(ctx, candidate); err != nil {
			e.logger.Warn("lead delivery failed", "botId", botId, "error", err)
		}
	}
}

// EndSession drops the session's dedup state once the conversation is over.
func (e *Extractor) EndSession(sessionId string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.seen, sessionId)
}

// markSeen reports whether the match is new for the session.
func (e *Extractor) markSeen(sessionId string, match string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.seen[sessionId]
	if !ok {
		session = make(map[string]bool)
		e.seen[sessionId] = session
	}
	if session[match] {
		return false
	}
	session[match] = true
	return true
}

// FindEmails returns the distinct email-like tokens in the text, lowercased,
// in order of first appearance.
func FindEmails(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, match := range emailPattern.FindAllString(text, -1) {
		normalized := strings.ToLower(match)
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}
