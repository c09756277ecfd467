package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexabot/knowledge-api/internal/api"
	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/domain/jobModel"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/internal/job"
	"github.com/nexabot/knowledge-api/internal/metrics"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           *logger_i.Logger
)

type JobHandler struct {
	service *job.Service
}

func InitJobHandler(jobService *job.Service) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService}

		logJH = logger_i.NewLogger("JobHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logJH.Info("Starting job handler")
	})
}

func CreateNewJob(newJob newJobData) {
	logJH.With("traceId", newJob.traceId, "job id", newJob.id)
	logJH.Info("To create new job", "jobType", newJob.jobType)
	handlerInstance.pushToJobChannel(newJob)
	if newJob.isNewSession {
		logJH.Info("Create new session")
		handlerInstance.initNewSession(newJob.sessionId, newJob.traceId)
	}
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctxC, id)
	}
	return result, false
}

func ValidateChatRequest(chatReq api.ChatRequest) bool {
	if handlerInstance == nil {
		return false
	}
	if chatReq.Message == "" || chatReq.BotId == "" {
		return false
	}
	if chatReq.SessionID == "" {
		return true
	}
	return handlerInstance.service.ConversationStore.ValidateSessionId(context.Background(), chatReq.SessionID)
}

// private methods
func (h *JobHandler) pushToJobChannel(newJob newJobData) {
	_job := jobModel.Job{}
	_job.Id = newJob.id
	_job.BotId = newJob.botId
	_job.CreatedTime = time.Now()
	_job.TraceId = newJob.traceId
	_job.Status = jobModel.JobStatusQueued
	_job.JobType = newJob.jobType

	switch newJob.jobType {
	case jobModel.JobTypeChat:
		_job.SessionId = newJob.sessionId
		_job.JobPayload.Message = newJob.message
		_job.JobPayload.ResponseDelayMs = newJob.responseDelayMs
		_job.CurrentStep = jobModel.ChatInit

	case jobModel.JobTypeScrape:
		_job.JobPayload.ScrapeURL = newJob.scrapeURL
		_job.JobPayload.ChunkSize = newJob.chunkSize
		_job.CurrentStep = jobModel.TransportResolve

	case jobModel.JobTypeBatchScrape:
		_job.JobPayload.ScrapeURL = newJob.scrapeURL
		_job.JobPayload.ChunkSize = newJob.chunkSize
		_job.JobPayload.Batch = newJob.batch
		_job.CurrentStep = jobModel.BatchScraping

	case jobModel.JobTypeEmbed:
		_job.JobPayload.FileName = newJob.fileName
		_job.JobPayload.FileType = newJob.fileType
		_job.JobPayload.FilePath = newJob.filePath
		_job.JobPayload.Content = newJob.content
		_job.JobPayload.ChunkSize = newJob.chunkSize
		_job.CurrentStep = jobModel.Chunking
	}

	//metrics
	metrics.IncrementJobsInQueue()

	h.service.JobChannel <- _job //blocking send to prevent the system from being overwhelmed
	logJH.Info("Created new job")

	//ingestion-class jobs get a worker immediately; batch scrapes hold a
	//worker for minutes, so starving chat behind them is the failure mode
	//this avoids
	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || newJob.jobType != jobModel.JobTypeChat {
		metrics.StartDispatcherSignalCount()
		logJH.Debug("Worker count", "requests", accurateCount)
		h.service.DispatcherChannel <- true
	}
}

func (h *JobHandler) initNewSession(sessionId string, traceId string) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if err := h.service.ConversationStore.InitNewSession(ctxC, sessionId); err != nil {
		logJH.Error("Error initiating new session", "sessionId", sessionId, "error", err)
	}
}

func batchJobFromRequest(req api.BatchScrapeRequest) *knowledgeModel.BatchJob {
	mode := knowledgeModel.BatchMode(req.Mode)
	switch mode {
	case knowledgeModel.BatchModeSitemap, knowledgeModel.BatchModeCrawl:
	default:
		mode = knowledgeModel.BatchModeList
	}
	return &knowledgeModel.BatchJob{
		Mode:        mode,
		URLs:        req.URLs,
		StopOnError: req.StopOnError,
	}
}
