package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/job"
	"github.com/nexabot/knowledge-api/internal/leads"
	"github.com/nexabot/knowledge-api/internal/metrics"
	"github.com/nexabot/knowledge-api/internal/rag"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

var (
	_jobService        *job.Service
	_ragService        rag.Service
	_leadExtractor     *leads.Extractor
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	dispatcherChannel  chan bool
	currentWorkerCount int64
	logger             *logger_i.Logger
	minWorkerCount     = config.MinWorkerCount
)

func InitServices(jobService *job.Service, ragService rag.Service, leadExtractor *leads.Extractor) {
	_jobService = jobService
	_ragService = ragService
	_leadExtractor = leadExtractor
	dispatcherChannel = jobService.DispatcherChannel
}

func InitWorkerPool(stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	stopWorkerChannel = stopWorkerChan
	workerWaitGroup = waitGroup
	logger = logger_i.NewLogger("WorkerPool")
	logger.Info("Initializing worker pool")
	go dispatcher()
}

func dispatcher() {
	createWorker()
	logger.Info("Dispatcher started")
	for range dispatcherChannel {
		if atomic.LoadInt64(&currentWorkerCount) < config.MaxWorkerCount {
			logger.Info("Creating new worker", "WorkerCount :", currentWorkerCount)
			createWorker()
		}
	}
}

func createWorker() {
	workerWaitGroup.Add(1)
	go worker()
	atomic.AddInt64(&currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	logger.Info("Created new worker")
}

// canRetireIdle keeps the pool at minWorkerCount; only surplus workers may
// retire on idle timeout.
func canRetireIdle() bool {
	return atomic.LoadInt64(&currentWorkerCount) > minWorkerCount
}

func worker() {
	for {
		select {
		case currentJob := <-_jobService.JobChannel:
			executeJob(currentJob)
			metrics.DecrementJobsInQueue()

		case <-stopWorkerChannel:
			removeWorker("Stop worker signal received")
			return

		case <-time.After(config.IdleWorkerTimeout):
			// Worker was idle for too long, decrement counter and retire
			if canRetireIdle() {
				removeWorker("Idle worker timeout - Removed worker")
				return
			}
		}
	}
}
