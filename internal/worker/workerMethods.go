package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nexabot/knowledge-api/internal/config"
	jobmodel "github.com/nexabot/knowledge-api/internal/domain/jobModel"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/internal/metrics"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, jobDeadline(job.JobType))
	defer cancel()
	log := logger.With("traceId", job.TraceId, "jobId", job.Id)
	log.Debug("Processing job", "jobType", job.JobType)

	saveJobState(ctx, job, jobmodel.JobStatusRunning)

	switch job.JobType {
	case jobmodel.JobTypeChat:
		job = processChat(ctx, job)

	case jobmodel.JobTypeScrape:
		job = _ragService.IngestURL(ctx, job)

	case jobmodel.JobTypeEmbed:
		job = _ragService.IngestContent(ctx, job)

	case jobmodel.JobTypeBatchScrape:
		job = _ragService.RunBatch(ctx, job, func(snapshot jobmodel.Job) {
			snapshot.Status = jobmodel.JobStatusRunning
			if err := _jobService.JobStore.SaveJob(ctx, snapshot); err != nil {
				log.Error("Failed to save batch progress", "err", err)
			}
		})

	default:
		log.Error("Unknown job type, dropping", "jobType", job.JobType)
		return
	}

	job.EndTime = time.Now()
	if job.Status == jobmodel.JobStatusError {
		saveJobState(ctx, job, jobmodel.JobStatusError)
		return
	}
	saveJobState(ctx, job, jobmodel.JobStatusComplete)
}

func jobDeadline(jobType jobmodel.JobType) time.Duration {
	switch jobType {
	case jobmodel.JobTypeBatchScrape:
		return config.BatchJobTimeout
	case jobmodel.JobTypeChat:
		return config.ChatJobTimeout
	default:
		return config.IngestJobTimeout
	}
}

func processChat(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	job.CurrentStep = jobmodel.RedisCall
	history, err := _jobService.ConversationStore.GetHistory(ctx, job.SessionId)
	if err != nil {
		logger.Error("Failed to get conversation history", "err", err)
	}

	job = _ragService.ProcessChat(ctx, job, history)
	if job.Status == jobmodel.JobStatusError {
		return job
	}

	saveTurns(ctx, job)

	// lead capture rides along without ever blocking or failing the turn
	go func(botId string, sessionId string, message string, traceId string) {
		scanCtx, cancel := leadScanContext(traceId)
		defer cancel()
		_leadExtractor.ScanTurn(scanCtx, botId, sessionId, message)
	}(job.BotId, job.SessionId, job.JobPayload.Message, job.TraceId)

	// hold the finished answer back so replies land at a configured pace
	if job.JobPayload.ResponseDelayMs > 0 {
		time.Sleep(time.Duration(job.JobPayload.ResponseDelayMs) * time.Millisecond)
	}
	return job
}

// leadScanContext bounds the detached lead scan; a hung CRM endpoint must
// not leak a goroutine per turn.
func leadScanContext(traceId string) (context.Context, context.CancelFunc) {
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	return context.WithTimeout(ctx, config.LeadScanTimeout)
}

func saveTurns(ctx context.Context, job jobmodel.Job) {
	now := time.Now()
	turns := []knowledgeModel.ConversationTurn{
		{Role: knowledgeModel.RoleUser, Text: job.JobPayload.Message, Timestamp: now},
		{Role: knowledgeModel.RoleAssistant, Text: job.JobPayload.Answer, Timestamp: now},
	}
	for _, turn := range turns {
		if err := _jobService.ConversationStore.AppendTurn(ctx, job.SessionId, turn); err != nil {
			logger.Error("Failed to save conversation turn", "err", err)
		}
	}
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker", "reason", reason, "workerCount", currentWorkerCount)
	metrics.DecrementActiveWorkerCount()
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Failed to update job status", "err", err)
	}
}
