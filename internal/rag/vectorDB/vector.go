package vectorDB

import (
	"context"

	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
)

// DataProcessor is what the ingestion and chat paths need from the vector
// store; ownership of the vectors moves here once persisted.
type DataProcessor interface {
	EnsureCollection(ctx context.Context, collectionName string) error
	UpsertChunks(ctx context.Context, collectionName string, chunks []knowledgeModel.KnowledgeChunk, vectors [][]float32) error

	// Search returns the matched chunk texts and their source labels for one
	// bot, nearest-neighbour order.
	Search(ctx context.Context, botId string, vector []float32, topK int) ([]string, []string, error)

	// GetCachedAnswer looks up a previously served answer for a semantically
	// equivalent question from the same bot. The boolean reports a hit.
	GetCachedAnswer(ctx context.Context, botId string, vector []float32) (string, bool, error)
	SaveCachedAnswer(ctx context.Context, id string, botId string, vector []float32, answer string) error
}
