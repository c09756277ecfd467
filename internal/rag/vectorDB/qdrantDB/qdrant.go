package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

var logger *logger_i.Logger
var qdrantInstance *qdrant.Client
var once sync.Once
var dimension = uint64(config.EmbeddingOutputDimensionality)

type ClientHolder struct {
	QObj *qdrant.Client
}

func GetQdrantClient(ctx context.Context) *ClientHolder {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient()
		if res != nil {
			qdrantInstance = res
			go closeQdrant(ctx, qdrantInstance)
		}
	})

	if qdrantInstance == nil {
		return nil
	}
	return &ClientHolder{
		QObj: qdrantInstance,
	}
}

func newClient() *qdrant.Client {
	host := os.Getenv("QDRANT_HOST")
	port, er := strconv.Atoi(os.Getenv("QDRANT_PORT"))

	if host == "" || er != nil {
		host = config.QdrantHost
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate qdrant client", "error", err)
		return nil
	}

	if err := createCollection(context.Background(), client, config.KnowledgeCollectionName); err != nil {
		logger.Error("could not create collection", "collectionName", config.KnowledgeCollectionName, "error", err)
		return nil
	}
	//the cache is an optimization; a failed bootstrap only costs hits
	initAnswerCacheCollection(context.Background(), client)

	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	if err := qi.Close(); err != nil {
		logger.Error("could not close Qdrant", "error", err)
	}
}

func (db *ClientHolder) EnsureCollection(ctx context.Context, collectionName string) error {
	return createCollection(ctx, db.QObj, collectionName)
}

// Search is always scoped to one bot; two bots never see each other's
// knowledge even inside a shared collection.
func (db *ClientHolder) Search(ctx context.Context, botId string, vector []float32, topK int) ([]string, []string, error) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "botId", botId)

	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: config.KnowledgeCollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("bot_id", botId),
			},
		},
	})
	if err != nil {
		loggr.Error("Error querying Qdrant", "error", err)
		return nil, nil, err
	}

	var matches []string
	var sources []string
	for _, hit := range result {
		content := hit.Payload["content"].GetStringValue()
		sourceName := hit.Payload["source_name"].GetStringValue()
		matches = append(matches, content)
		sources = append(sources, sourceName)
	}

	loggr.Debug("vector search done", "matches", len(matches))
	return matches, sources, nil
}

func (db *ClientHolder) UpsertChunks(ctx context.Context, collectionName string, chunks []knowledgeModel.KnowledgeChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ChunkId),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":       chunk.Text,
				"bot_id":        chunk.BotId,
				"source_doc_id": chunk.DocumentId,
				"source_name":   chunk.SourceName,
				"chunk_index":   chunk.Index,
				"token_count":   chunk.TokenCount,
			}),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
