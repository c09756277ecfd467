package qdrantDB

import (
	"context"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/nexabot/knowledge-api/internal/config"
)

// The answer cache is a second collection in the same Qdrant instance, keyed
// on the question embedding. Entries are scoped per bot; a hit requires both
// the bot filter and a similarity score above the cutoff.

func initAnswerCacheCollection(ctx context.Context, client *qdrant.Client) {
	if err := createCollection(ctx, client, config.AnswerCacheCollectionName); err != nil {
		logger.Error("answer cache collection creation failed", "error", err)
	}
}

func (db *ClientHolder) GetCachedAnswer(ctx context.Context, botId string, vector []float32) (string, bool, error) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "botId", botId)

	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: config.AnswerCacheCollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("bot_id", botId),
			},
		},
	})
	if err != nil {
		loggr.Warn("answer cache lookup failed", "error", err)
		return "", false, err
	}
	if len(result) == 0 {
		return "", false, nil
	}

	if result[0].Score < config.CacheSimilarityCutoff {
		loggr.Debug("answer cache near-miss", "score", result[0].Score)
		return "", false, nil
	}

	loggr.Debug("answer cache hit", "score", result[0].Score)
	return result[0].Payload["answer"].GetStringValue(), true, nil
}

func (db *ClientHolder) SaveCachedAnswer(ctx context.Context, id string, botId string, vector []float32, answer string) error {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "botId", botId)

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: config.AnswerCacheCollectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(id),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"answer":    answer,
					"bot_id":    botId,
					"timestamp": time.Now().Unix(),
				}),
			},
		},
	})
	if err != nil {
		loggr.Warn("saving answer to cache failed", "error", err)
	}
	return err
}
