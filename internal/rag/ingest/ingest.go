package ingest

import (
	"context"
	"fmt"

	"github.com/nexabot/knowledge-api/internal/adapter/utils"
	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/internal/metrics"
	"github.com/nexabot/knowledge-api/internal/rag/embedding"
	"github.com/nexabot/knowledge-api/internal/rag/vectorDB"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

type Ingestor struct {
	embedder embedding.Embedder
	vectorDB vectorDB.DataProcessor
	chunker  *Chunker
	logger   *logger_i.Logger
}

func NewIngestor(e embedding.Embedder, v vectorDB.DataProcessor, chunker *Chunker) *Ingestor {
	return &Ingestor{
		embedder: e,
		vectorDB: v,
		chunker:  chunker,
		logger:   logger_i.NewLogger("Ingestor"),
	}
}

// EmbedText chunks the text, embeds each chunk and upserts the successes.
// A chunk whose embedding call fails is counted and skipped, never aborting
// the document; the report carries the succeeded/failed split and the token
// total actually embedded.
func (s *Ingestor) EmbedText(ctx context.Context, botId string, sourceName string, text string, tokenBudget int) (knowledgeModel.ChunkReport, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "botId", botId, "source", sourceName)

	report := knowledgeModel.ChunkReport{FileName: sourceName}
	if text == "" {
		return report, fmt.Errorf("nothing to embed for %q", sourceName)
	}
	if tokenBudget <= 0 {
		tokenBudget = config.DefaultChunkTokenBudget
	}

	if err := s.vectorDB.EnsureCollection(ctx, config.KnowledgeCollectionName); err != nil {
		return report, fmt.Errorf("ensuring collection: %w", err)
	}

	docId := utils.GetNewUUID()
	pieces := s.chunker.Split(text, tokenBudget)
	log.Debug("prepared chunks", "count", len(pieces), "tokenBudget", tokenBudget)

	var kept []knowledgeModel.KnowledgeChunk
	var vectors [][]float32

	for i, piece := range pieces {
		vector, err := s.embedder.GetEmbedding(ctx, piece.Text)
		if err != nil {
			report.ChunksFailed++
			log.Warn("chunk embedding failed, skipping", "chunkIndex", i, "error", err)
			continue
		}

		//skipped chunks must not leave index gaps in the stored document
		kept = append(kept, knowledgeModel.KnowledgeChunk{
			ChunkId:    utils.GetNewUUID(),
			DocumentId: docId,
			BotId:      botId,
			SourceName: sourceName,
			Index:      len(kept),
			Text:       piece.Text,
			TokenCount: piece.TokenCount,
		})
		vectors = append(vectors, vector)
		report.ChunksProcessed++
		report.TotalTokens += piece.TokenCount
	}

	metrics.CountChunks(report.ChunksProcessed, report.ChunksFailed)

	if len(kept) == 0 {
		return report, fmt.Errorf("every chunk failed to embed for %q", sourceName)
	}

	if err := s.vectorDB.UpsertChunks(ctx, config.KnowledgeCollectionName, kept, vectors); err != nil {
		return report, fmt.Errorf("upserting chunks: %w", err)
	}

	log.Info("embedded source", "processed", report.ChunksProcessed, "failed", report.ChunksFailed, "tokens", report.TotalTokens)
	return report, nil
}
