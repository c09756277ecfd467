package completion

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

// directBackend is the client-held-key fallback: same prompt assembly as the
// managed backend, no server-side quota tracking.
type directBackend struct {
	client openai.Client
	model  string
	hasKey bool
	logger *logger_i.Logger
}

func NewDirectBackend(apiKey string, model string) Backend {
	b := &directBackend{
		model:  model,
		hasKey: apiKey != "",
		logger: logger_i.NewLogger("DirectBackend"),
	}
	if b.hasKey {
		b.client = openai.NewClient(option.WithAPIKey(apiKey))
	}
	return b
}

func (d *directBackend) Name() string { return "direct" }

func (d *directBackend) Complete(ctx context.Context, req Request) (Reply, error) {
	if !d.hasKey {
		return Reply{}, ErrNotConfigured
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(BuildSystemPrompt(req.SystemInstructions, req.KnowledgeContext, req.ContextDirective)),
	}
	for _, turn := range req.History {
		if turn.Role == knowledgeModel.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(turn.Text))
			continue
		}
		messages = append(messages, openai.UserMessage(turn.Text))
	}
	messages = append(messages, openai.UserMessage(req.Message))

	resp, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(d.model),
		Messages: messages,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("direct completion call: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Reply{}, fmt.Errorf("direct backend returned no choices")
	}

	return Reply{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}
