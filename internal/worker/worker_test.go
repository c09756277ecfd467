package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/domain/jobModel"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/internal/job"
	"github.com/nexabot/knowledge-api/internal/leads"
)

// MockRagService tracks which jobs reached the pipeline
type MockRagService struct {
	ProcessedCount int32
}

func (m *MockRagService) ProcessChat(ctx context.Context, j jobModel.Job, history []knowledgeModel.ConversationTurn) jobModel.Job {
	atomic.AddInt32(&m.ProcessedCount, 1)
	j.Status = jobModel.JobStatusQueued
	return j
}

func (m *MockRagService) IngestURL(ctx context.Context, j jobModel.Job) jobModel.Job {
	atomic.AddInt32(&m.ProcessedCount, 1)
	return j
}

func (m *MockRagService) IngestContent(ctx context.Context, j jobModel.Job) jobModel.Job {
	atomic.AddInt32(&m.ProcessedCount, 1)
	return j
}

func (m *MockRagService) RunBatch(ctx context.Context, j jobModel.Job, saveProgress func(jobModel.Job)) jobModel.Job {
	atomic.AddInt32(&m.ProcessedCount, 1)
	return j
}

type MockJobStore struct {
	OnSaveJob func(ctx context.Context, job jobModel.Job) error
}

func (m *MockJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	return jobModel.Job{}, false
}

func (m *MockJobStore) DeleteJob(ctx context.Context, jobID string) {}

func (m *MockJobStore) SaveJob(ctx context.Context, j jobModel.Job) error {
	if m.OnSaveJob != nil {
		return m.OnSaveJob(ctx, j)
	}
	return nil
}

type MockConversationStore struct {
	mu    sync.Mutex
	turns []knowledgeModel.ConversationTurn
}

func (m *MockConversationStore) ValidateSessionId(ctx context.Context, id string) bool { return true }
func (m *MockConversationStore) InitNewSession(ctx context.Context, id string) error   { return nil }

func (m *MockConversationStore) AppendTurn(ctx context.Context, id string, turn knowledgeModel.ConversationTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	return nil
}

func (m *MockConversationStore) GetHistory(ctx context.Context, sessionId string) ([]knowledgeModel.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]knowledgeModel.ConversationTurn, len(m.turns))
	copy(out, m.turns)
	return out, nil
}

func TestWorkerPool_Flow(t *testing.T) {
	convStore := &MockConversationStore{}
	jobSvc := &job.Service{
		JobChannel:        make(chan jobModel.Job, 10),
		DispatcherChannel: make(chan bool, 10),
		JobStore:          &MockJobStore{},
		ConversationStore: convStore,
	}
	mockRag := &MockRagService{}
	stopChan := make(chan bool)
	wg := &sync.WaitGroup{}

	InitServices(jobSvc, mockRag, leads.NewExtractor(leads.NewCRMClient("")))
	InitWorkerPool(stopChan, wg)

	// Reset global state for test
	atomic.StoreInt64(&currentWorkerCount, 0)

	t.Run("Dispatcher creates worker on signal", func(t *testing.T) {
		jobSvc.DispatcherChannel <- true

		time.Sleep(50 * time.Millisecond)

		count := atomic.LoadInt64(&currentWorkerCount)
		if count < 1 {
			t.Errorf("Expected at least 1 worker, got %d", count)
		}
	})

	t.Run("Worker processes a chat job and saves both turns", func(t *testing.T) {
		testJob := jobModel.Job{
			Id:        "test-1",
			SessionId: "sess-1",
			JobType:   jobModel.JobTypeChat,
			JobPayload: jobModel.JobPayload{
				Message: "hello",
			},
		}
		jobSvc.JobChannel <- testJob

		time.Sleep(100 * time.Millisecond)

		processed := atomic.LoadInt32(&mockRag.ProcessedCount)
		if processed != 1 {
			t.Errorf("Expected 1 job processed, got %d", processed)
		}

		convStore.mu.Lock()
		turnCount := len(convStore.turns)
		convStore.mu.Unlock()
		if turnCount != 2 {
			t.Errorf("Expected user and assistant turns saved, got %d", turnCount)
		}
	})

	t.Run("Worker dispatches batch jobs", func(t *testing.T) {
		jobSvc.JobChannel <- jobModel.Job{
			Id:      "batch-1",
			JobType: jobModel.JobTypeBatchScrape,
			JobPayload: jobModel.JobPayload{
				Batch: &knowledgeModel.BatchJob{Mode: knowledgeModel.BatchModeList},
			},
		}

		time.Sleep(100 * time.Millisecond)

		processed := atomic.LoadInt32(&mockRag.ProcessedCount)
		if processed != 2 {
			t.Errorf("Expected 2 jobs processed, got %d", processed)
		}
	})

	t.Run("Stop signal retires workers", func(t *testing.T) {
		close(stopChan)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// Success
		case <-time.After(2 * time.Second):
			t.Error("Workers did not stop within timeout")
		}
	})
}

func TestIdleRetirementGuard(t *testing.T) {
	saved := atomic.LoadInt64(&currentWorkerCount)
	defer atomic.StoreInt64(&currentWorkerCount, saved)

	atomic.StoreInt64(&currentWorkerCount, minWorkerCount+4)
	if !canRetireIdle() {
		t.Error("Workers above the minimum must be allowed to retire on idle timeout")
	}

	atomic.StoreInt64(&currentWorkerCount, minWorkerCount)
	if canRetireIdle() {
		t.Error("The pool must never shrink below the minimum worker count")
	}
}

func TestLeadScanContextHasDeadline(t *testing.T) {
	ctx, cancel := leadScanContext("trace-1")
	defer cancel()

	if _, ok := ctx.Deadline(); !ok {
		t.Error("Detached lead scans need a deadline so a hung CRM call cannot leak goroutines")
	}
	if ctx.Value(config.TRACE_ID_KEY) != "trace-1" {
		t.Error("Lead scan context must carry the originating trace id")
	}
}

func TestJobDeadline(t *testing.T) {
	if jobDeadline(jobModel.JobTypeBatchScrape) <= jobDeadline(jobModel.JobTypeChat) {
		t.Error("Batch jobs must get a longer deadline than chat jobs")
	}
	if jobDeadline(jobModel.JobTypeScrape) <= jobDeadline(jobModel.JobTypeChat) {
		t.Error("Ingestion jobs must get a longer deadline than chat jobs")
	}
}
