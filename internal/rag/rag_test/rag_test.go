package rag_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/domain/jobModel"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/internal/rag"
	"github.com/nexabot/knowledge-api/internal/rag/completion"
	"github.com/nexabot/knowledge-api/internal/scrape/transport"
)

// --- Mocks ---

type MockEmbedder struct {
	OnGetEmbedding func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, text)
	}
	return []float32{0.1, 0.2}, nil
}

type MockVectorDB struct {
	OnSearch          func(ctx context.Context, botId string, vector []float32, topK int) ([]string, []string, error)
	OnGetCachedAnswer func(ctx context.Context, botId string, vector []float32) (string, bool, error)
	SavedAnswers      []string
}

func (m *MockVectorDB) EnsureCollection(ctx context.Context, collectionName string) error {
	return nil
}

func (m *MockVectorDB) UpsertChunks(ctx context.Context, collectionName string, chunks []knowledgeModel.KnowledgeChunk, vectors [][]float32) error {
	return nil
}

func (m *MockVectorDB) Search(ctx context.Context, botId string, vector []float32, topK int) ([]string, []string, error) {
	if m.OnSearch != nil {
		return m.OnSearch(ctx, botId, vector, topK)
	}
	return nil, nil, nil
}

func (m *MockVectorDB) GetCachedAnswer(ctx context.Context, botId string, vector []float32) (string, bool, error) {
	if m.OnGetCachedAnswer != nil {
		return m.OnGetCachedAnswer(ctx, botId, vector)
	}
	return "", false, nil
}

func (m *MockVectorDB) SaveCachedAnswer(ctx context.Context, id string, botId string, vector []float32, answer string) error {
	m.SavedAnswers = append(m.SavedAnswers, answer)
	return nil
}

type MockBackend struct {
	OnComplete func(ctx context.Context, req completion.Request) (completion.Reply, error)
}

func (m *MockBackend) Name() string { return "mock" }
func (m *MockBackend) Complete(ctx context.Context, req completion.Request) (completion.Reply, error) {
	return m.OnComplete(ctx, req)
}

func testGateway(backend *MockBackend) *completion.Gateway {
	return completion.NewGateway(completion.GatewayConfig{
		AttemptTimeout:      time.Second,
		ConfigErrorMessage:  "not configured",
		NetworkErrorMessage: "network trouble",
	}, backend)
}

func deadResolver() *transport.Resolver {
	return transport.NewResolver(transport.Config{
		AttemptTimeout: time.Second,
		MinContentSize: 10,
	}).WithTransports([]transport.Transport{
		{Name: "stub", Fetch: func(ctx context.Context, url string) (string, error) {
			return "", errors.New("unreachable")
		}},
	})
}

// the chat and failure paths under test never reach the chunker
func newTestService(vec *MockVectorDB, emb *MockEmbedder, backend *MockBackend, resolver *transport.Resolver) rag.Service {
	return rag.NewService(vec, emb, testGateway(backend), resolver, nil)
}

// --- Tests ---

func TestProcessChat_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		embedder    *MockEmbedder
		vectorDB    *MockVectorDB
		wantContext string
		wantSources int
	}{
		{
			name:     "Grounded_Answer_With_Context",
			embedder: &MockEmbedder{},
			vectorDB: &MockVectorDB{
				OnSearch: func(ctx context.Context, botId string, vector []float32, topK int) ([]string, []string, error) {
					if botId != "bot-1" {
						t.Errorf("Search botId got %s, want bot-1", botId)
					}
					return []string{"We open at 9am.", "We close at 5pm."}, []string{"example.com"}, nil
				},
			},
			wantContext: "We open at 9am.\nWe close at 5pm.",
			wantSources: 1,
		},
		{
			name: "Embedding_Failure_Degrades_To_Ungrounded",
			embedder: &MockEmbedder{
				OnGetEmbedding: func(ctx context.Context, text string) ([]float32, error) {
					return nil, errors.New("quota exceeded")
				},
			},
			vectorDB:    &MockVectorDB{},
			wantContext: "",
		},
		{
			name:     "Search_Failure_Degrades_To_Ungrounded",
			embedder: &MockEmbedder{},
			vectorDB: &MockVectorDB{
				OnSearch: func(ctx context.Context, botId string, vector []float32, topK int) ([]string, []string, error) {
					return nil, nil, errors.New("db timeout")
				},
			},
			wantContext: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var receivedReq completion.Request
			backend := &MockBackend{
				OnComplete: func(ctx context.Context, req completion.Request) (completion.Reply, error) {
					receivedReq = req
					return completion.Reply{Text: "final answer", Usage: completion.Usage{TotalTokens: 33}}, nil
				},
			}
			s := newTestService(tt.vectorDB, tt.embedder, backend, deadResolver())

			ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
			job := jobModel.Job{
				Id:    "test-job",
				BotId: "bot-1",
				JobPayload: jobModel.JobPayload{
					Message: "when do you open?",
				},
			}
			history := []knowledgeModel.ConversationTurn{
				{Role: knowledgeModel.RoleUser, Text: "hi"},
				{Role: knowledgeModel.RoleAssistant, Text: "hello"},
			}

			result := s.ProcessChat(ctx, job, history)

			if result.JobPayload.Answer != "final answer" {
				t.Errorf("Answer got %q, want final answer", result.JobPayload.Answer)
			}
			if result.JobPayload.TotalTokensUsed != 33 {
				t.Errorf("TotalTokensUsed got %d, want 33", result.JobPayload.TotalTokensUsed)
			}
			if result.CurrentStep != jobModel.Complete {
				t.Errorf("Step got %v, want Complete", result.CurrentStep)
			}

			if receivedReq.KnowledgeContext != tt.wantContext {
				t.Errorf("KnowledgeContext got %q, want %q", receivedReq.KnowledgeContext, tt.wantContext)
			}
			if receivedReq.SystemInstructions != config.SystemInstructions {
				t.Error("System instructions not forwarded to the backend")
			}
			if len(receivedReq.History) != 2 || receivedReq.History[0].Text != "hi" {
				t.Errorf("History not preserved: %+v", receivedReq.History)
			}
			if len(result.JobPayload.Sources) != tt.wantSources {
				t.Errorf("Sources got %d, want %d", len(result.JobPayload.Sources), tt.wantSources)
			}
		})
	}
}

func TestProcessChat_CacheHitSkipsBackend(t *testing.T) {
	backend := &MockBackend{
		OnComplete: func(ctx context.Context, req completion.Request) (completion.Reply, error) {
			t.Fatal("a cache hit must never reach a completion backend")
			return completion.Reply{}, nil
		},
	}
	vec := &MockVectorDB{
		OnGetCachedAnswer: func(ctx context.Context, botId string, vector []float32) (string, bool, error) {
			if botId != "bot-1" {
				t.Errorf("Cache lookup botId got %s, want bot-1", botId)
			}
			return "cached reply", true, nil
		},
	}
	s := newTestService(vec, &MockEmbedder{}, backend, deadResolver())

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "cache-trace")
	result := s.ProcessChat(ctx, jobModel.Job{Id: "cache-job", BotId: "bot-1",
		JobPayload: jobModel.JobPayload{Message: "when do you open?"}}, nil)

	if result.JobPayload.Answer != "cached reply" {
		t.Errorf("Answer got %q, want the cached reply", result.JobPayload.Answer)
	}
	if result.CurrentStep != jobModel.Complete {
		t.Errorf("Step got %v, want Complete", result.CurrentStep)
	}
	if len(vec.SavedAnswers) != 0 {
		t.Error("A served cache hit must not be re-saved")
	}
}

func TestProcessChat_CacheWrites(t *testing.T) {
	tests := []struct {
		name      string
		embedder  *MockEmbedder
		wantSaves int
	}{
		{
			name:      "Backend_Reply_Is_Cached",
			embedder:  &MockEmbedder{},
			wantSaves: 1,
		},
		{
			name: "No_Vector_Means_No_Cache_Write",
			embedder: &MockEmbedder{
				OnGetEmbedding: func(ctx context.Context, text string) ([]float32, error) {
					return nil, errors.New("quota exceeded")
				},
			},
			wantSaves: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &MockBackend{
				OnComplete: func(ctx context.Context, req completion.Request) (completion.Reply, error) {
					return completion.Reply{Text: "final answer"}, nil
				},
			}
			vec := &MockVectorDB{}
			s := newTestService(vec, tt.embedder, backend, deadResolver())

			ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "cache-write-trace")
			s.ProcessChat(ctx, jobModel.Job{Id: "cw-job", BotId: "bot-1",
				JobPayload: jobModel.JobPayload{Message: "hi"}}, nil)

			if len(vec.SavedAnswers) != tt.wantSaves {
				t.Fatalf("Cache saves got %d, want %d", len(vec.SavedAnswers), tt.wantSaves)
			}
			if tt.wantSaves == 1 && vec.SavedAnswers[0] != "final answer" {
				t.Errorf("Cached text got %q, want the backend reply", vec.SavedAnswers[0])
			}
		})
	}
}

func TestIngestURL_ScrapeFailure(t *testing.T) {
	backend := &MockBackend{
		OnComplete: func(ctx context.Context, req completion.Request) (completion.Reply, error) {
			t.Fatal("completion must not run when every transport failed")
			return completion.Reply{}, nil
		},
	}
	s := newTestService(&MockVectorDB{}, &MockEmbedder{}, backend, deadResolver())

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "scrape-trace")
	job := jobModel.Job{
		Id:    "scrape-job",
		BotId: "bot-1",
		JobPayload: jobModel.JobPayload{
			ScrapeURL: "https://unreachable.example.com",
		},
	}

	result := s.IngestURL(ctx, job)

	if result.Status != jobModel.JobStatusError {
		t.Errorf("Status got %v, want Error", result.Status)
	}
	if result.Error.Code != http.StatusInternalServerError {
		t.Errorf("Error code got %d, want 500", result.Error.Code)
	}
	if !result.Error.Retry {
		t.Error("Scrape failures should be retryable")
	}
}

func TestRunBatch_ListModeRecordsFailures(t *testing.T) {
	backend := &MockBackend{
		OnComplete: func(ctx context.Context, req completion.Request) (completion.Reply, error) {
			return completion.Reply{Text: "summary"}, nil
		},
	}
	s := newTestService(&MockVectorDB{}, &MockEmbedder{}, backend, deadResolver())

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "batch-trace")
	job := jobModel.Job{
		Id:      "batch-job",
		BotId:   "bot-1",
		JobType: jobModel.JobTypeBatchScrape,
		JobPayload: jobModel.JobPayload{
			Batch: &knowledgeModel.BatchJob{
				Mode: knowledgeModel.BatchModeList,
				URLs: []string{"https://a.example.com", "https://b.example.com"},
			},
		},
	}

	var progressSaves int
	result := s.RunBatch(ctx, job, func(snapshot jobModel.Job) {
		progressSaves++
	})

	batch := result.JobPayload.Batch
	if batch == nil {
		t.Fatal("Batch result missing")
	}
	if batch.Completed != 2 || batch.Failed != 2 {
		t.Errorf("Counts got completed=%d failed=%d, want 2/2", batch.Completed, batch.Failed)
	}
	if progressSaves != 2 {
		t.Errorf("Progress saves got %d, want one per URL", progressSaves)
	}
	if result.Status != jobModel.JobStatusComplete {
		t.Errorf("Status got %v, want Complete", result.Status)
	}
}
