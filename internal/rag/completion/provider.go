package completion

import (
	"context"
	"errors"

	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
)

// ErrNotConfigured marks a backend that cannot run in this deployment
// (missing session token or API key). The gateway skips it silently.
var ErrNotConfigured = errors.New("completion backend not configured")

type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Reply is always displayable text; callers never see a raw error surface.
type Reply struct {
	Text    string `json:"text"`
	Usage   Usage  `json:"usage"`
	Backend string `json:"backend,omitempty"` //which backend produced the text
}

// Request carries everything needed to assemble one grounded prompt. History
// order is the submission order and must not be reordered or deduplicated.
type Request struct {
	BotId              string
	SessionId          string
	SystemInstructions string
	KnowledgeContext   string
	ContextDirective   string
	History            []knowledgeModel.ConversationTurn
	Message            string
}

// Backend is one completion strategy in the fallback chain.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (Reply, error)
}
