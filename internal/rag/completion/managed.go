package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nexabot/knowledge-api/internal/customHttpClient"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

// managedBackend calls the quota-aware server-side completion endpoint. It
// is preferred because usage accounting happens there, not client-side.
type managedBackend struct {
	baseURL string
	token   string
	logger  *logger_i.Logger
}

func NewManagedBackend(baseURL string, token string) Backend {
	return &managedBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		logger:  logger_i.NewLogger("ManagedBackend"),
	}
}

func (m *managedBackend) Name() string { return "managed" }

type managedTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type managedRequest struct {
	BotId               string        `json:"botId"`
	SessionId           string        `json:"sessionId"`
	Message             string        `json:"message"`
	SystemPrompt        string        `json:"systemPrompt"`
	ConversationHistory []managedTurn `json:"conversationHistory"`
}

type managedResponse struct {
	Message string `json:"message"`
	Usage   *Usage `json:"usage,omitempty"`
}

func (m *managedBackend) Complete(ctx context.Context, req Request) (Reply, error) {
	if m.baseURL == "" || m.token == "" {
		return Reply{}, ErrNotConfigured
	}

	payload := managedRequest{
		BotId:        req.BotId,
		SessionId:    req.SessionId,
		Message:      req.Message,
		SystemPrompt: BuildSystemPrompt(req.SystemInstructions, req.KnowledgeContext, req.ContextDirective),
	}
	for _, turn := range req.History {
		payload.ConversationHistory = append(payload.ConversationHistory, managedTurn{
			Role: string(turn.Role),
			Text: turn.Text,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, fmt.Errorf("marshalling managed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/completions", bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("building managed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+m.token)

	resp, err := customHttpClient.GetPooledClient().Do(httpReq)
	if err != nil {
		return Reply{}, fmt.Errorf("managed backend call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reply{}, fmt.Errorf("managed backend returned status %d", resp.StatusCode)
	}

	var decoded managedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Reply{}, fmt.Errorf("decoding managed response: %w", err)
	}
	if decoded.Message == "" {
		return Reply{}, fmt.Errorf("managed backend returned empty message")
	}

	reply := Reply{Text: decoded.Message}
	if decoded.Usage != nil {
		reply.Usage = *decoded.Usage
	}
	return reply, nil
}
