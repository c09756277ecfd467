package googleEmbedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/rag/embedding"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client
var dimension int32 = config.EmbeddingOutputDimensionality

type client struct {
	genAi *genai.Client
	model string
}

func newGoogleEmbedder(ctx context.Context, modelName string, apikey string) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Google Embedding client", "error", err)
	}
	if c != nil {
		embeddingClient = &client{
			genAi: c,
			model: modelName,
		}
		logger.Info("Google Embedding client created", "model", modelName)
		go closeClient(ctx, embeddingClient)
	}
}

func closeClient(ctx context.Context, embeddingClient *client) {
	<-ctx.Done()
	logger.Info("Closing Google Embedding client")
	embeddingClient.genAi = nil
	embeddingClient.model = ""
}

func GetGoogleEmbeddingClient(ctx context.Context, modelName string, apikey string) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("google_embedding")
		newGoogleEmbedder(ctx, modelName, apikey)
	})

	//if init still fails
	if embeddingClient == nil {
		return nil
	}
	return &client{genAi: embeddingClient.genAi, model: embeddingClient.model}
}

// GetEmbedding embeds a single chunk. A rate-limit failure gets exactly one
// retry after a backoff; any other failure is the caller's to count.
func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	result, err := c.doCall(ctx, genai.Text(text))
	if err != nil && isRateLimited(err) {
		logger.Warn("rate limit hit, retrying once", "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
		result, err = c.doCall(ctx, genai.Text(text))
	}
	if err != nil {
		return nil, fmt.Errorf("google embedding call: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("google embedding returned no vectors")
	}
	return result.Embeddings[0].Values, nil
}

func (c *client) doCall(ctx context.Context, content []*genai.Content) (*genai.EmbedContentResponse, error) {
	return c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{
		OutputDimensionality: &dimension,
		TaskType:             "RETRIEVAL_DOCUMENT",
	})
}
