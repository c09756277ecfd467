package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/domain/jobModel"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/internal/metrics"
	"github.com/nexabot/knowledge-api/internal/rag/completion"
	"github.com/nexabot/knowledge-api/internal/rag/embedding"
	"github.com/nexabot/knowledge-api/internal/rag/ingest"
	"github.com/nexabot/knowledge-api/internal/rag/vectorDB"
	"github.com/nexabot/knowledge-api/internal/scrape/batch"
	"github.com/nexabot/knowledge-api/internal/scrape/extract"
	"github.com/nexabot/knowledge-api/internal/scrape/transport"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

// Service is everything the worker can do; it doesn't need to know about
// transports, vector stores or completion backends.
type Service interface {
	ProcessChat(ctx context.Context, job jobModel.Job, history []knowledgeModel.ConversationTurn) jobModel.Job
	IngestURL(ctx context.Context, job jobModel.Job) jobModel.Job
	IngestContent(ctx context.Context, job jobModel.Job) jobModel.Job
	RunBatch(ctx context.Context, job jobModel.Job, saveProgress func(jobModel.Job)) jobModel.Job
}

type service struct {
	vectorDB     vectorDB.DataProcessor
	embedder     embedding.Embedder
	gateway      *completion.Gateway
	resolver     *transport.Resolver
	ingestor     *ingest.Ingestor
	extractor    *extract.Extractor
	orchestrator *batch.Orchestrator
	logger       *logger_i.Logger
}

// NewService wires the pipeline. The service itself is the batch
// orchestrator's per-URL pipeline.
func NewService(vector vectorDB.DataProcessor, em embedding.Embedder, gw *completion.Gateway, resolver *transport.Resolver, chunker *ingest.Chunker) Service {
	s := &service{
		vectorDB: vector,
		embedder: em,
		gateway:  gw,
		resolver: resolver,
		ingestor: ingest.NewIngestor(em, vector, chunker),
		logger:   logger_i.NewLogger("RAG Service"),
	}

	s.extractor = extract.NewExtractor(extract.Config{}, s.summarizeCompletion)
	s.orchestrator = batch.NewOrchestrator(batch.DefaultConfig(), s, resolver.Resolve, extract.SitemapLocations, extract.SameDomainLinks)
	return s
}

// summarizeCompletion runs the extractor's one completion call through the
// same gateway chain as chat, so summarization degrades the same way.
func (s *service) summarizeCompletion(ctx context.Context, instructions string, content string) (string, error) {
	reply := s.gateway.Respond(ctx, completion.Request{
		SystemInstructions: instructions,
		Message:            content,
	})
	if reply.Backend == "none" {
		return "", errors.New("no completion backend produced a summary")
	}
	return reply.Text, nil
}

func (s *service) ProcessChat(ctx context.Context, jobt jobModel.Job, history []knowledgeModel.ConversationTurn) jobModel.Job {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "JobId", jobt.Id)

	processContext, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	vector := s.embedQuestion(processContext, log, &jobt)

	if answer, hit := s.checkAnswerCache(processContext, log, &jobt, vector); hit {
		jobt.JobPayload.Answer = answer
		jobt.CurrentStep = jobModel.Complete
		return jobt
	}

	knowledgeContext, sources := s.retrieveKnowledge(processContext, log, &jobt, vector)
	jobt.JobPayload.Sources = sources

	jobt.CurrentStep = jobModel.LLMCall
	start := time.Now()
	reply := s.gateway.Respond(processContext, completion.Request{
		BotId:              jobt.BotId,
		SessionId:          jobt.SessionId,
		SystemInstructions: config.SystemInstructions,
		KnowledgeContext:   knowledgeContext,
		ContextDirective:   config.ContextDirective,
		History:            history,
		Message:            jobt.JobPayload.Message,
	})
	metrics.CaptureExecutionMetrics("llm_generation", time.Since(start))

	//only answers a real backend produced are worth replaying
	if vector != nil && reply.Backend != "none" {
		s.saveAnswerToCache(processContext, &jobt, vector, reply.Text)
	}

	jobt.JobPayload.Answer = reply.Text
	jobt.JobPayload.TotalTokensUsed = reply.Usage.TotalTokens
	jobt.CurrentStep = jobModel.Complete
	return jobt
}

// embedQuestion is best-effort: a nil vector downgrades the turn to an
// ungrounded, uncached answer instead of killing it.
func (s *service) embedQuestion(ctx context.Context, log *logger_i.Logger, job *jobModel.Job) []float32 {
	job.CurrentStep = jobModel.EmbeddingAPICall
	start := time.Now()
	vector, err := s.embedder.GetEmbedding(ctx, job.JobPayload.Message)
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))
	if err != nil {
		log.Warn("question embedding failed, answering without context", "error", err)
		return nil
	}
	return vector
}

func (s *service) checkAnswerCache(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, vector []float32) (string, bool) {
	if vector == nil {
		return "", false
	}

	job.CurrentStep = jobModel.CacheCall
	start := time.Now()
	answer, found, _ := s.vectorDB.GetCachedAnswer(ctx, job.BotId, vector)
	metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start))
	if found {
		log.Debug("serving cached answer")
	}
	return answer, found
}

func (s *service) saveAnswerToCache(ctx context.Context, job *jobModel.Job, vector []float32, answer string) {
	if err := s.vectorDB.SaveCachedAnswer(ctx, job.Id, job.BotId, vector, answer); err != nil {
		s.logger.Warn("answer cache save failed", "error", err)
	}
}

// retrieveKnowledge is best-effort: a retrieval failure degrades to an
// ungrounded answer instead of killing the chat turn.
func (s *service) retrieveKnowledge(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, vector []float32) (string, []string) {
	if vector == nil {
		return "", nil
	}

	job.CurrentStep = jobModel.VectorDBCall
	start := time.Now()
	matches, sources, err := s.vectorDB.Search(ctx, job.BotId, vector, config.RetrievalTopK)
	metrics.CaptureExecutionMetrics("vector_search", time.Since(start))
	if err != nil {
		log.Warn("vector search failed, answering without context", "error", err)
		return "", nil
	}

	return strings.Join(matches, "\n"), sources
}

func (s *service) IngestURL(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("url_ingestion", time.Since(start)) }()

	job.CurrentStep = jobModel.TransportResolve
	report, err := s.scrapeAndEmbedWithReport(ctx, &job, job.BotId, job.JobPayload.ScrapeURL)
	job.JobPayload.ChunkReport = report
	if err != nil {
		return s.jobError(job, err, "SCRAPE_FAILURE", true)
	}

	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	return job
}

func (s *service) IngestContent(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("content_ingestion", time.Since(start)) }()

	text := job.JobPayload.Content
	if job.JobPayload.FilePath != "" {
		job.CurrentStep = jobModel.Extracting
		extracted, err := ingest.ExtractFile(job.JobPayload.FilePath)
		if err != nil {
			return s.jobError(job, err, "FILE_EXTRACTION_FAILURE", false)
		}
		text = extracted
	}

	job.CurrentStep = jobModel.Chunking
	report, err := s.ingestor.EmbedText(ctx, job.BotId, job.JobPayload.FileName, text, job.JobPayload.ChunkSize)
	job.JobPayload.ChunkReport = &report
	if err != nil {
		return s.jobError(job, err, "EMBEDDING_FAILURE", true)
	}

	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	return job
}

func (s *service) RunBatch(ctx context.Context, job jobModel.Job, saveProgress func(jobModel.Job)) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("batch_scrape", time.Since(start)) }()

	job.CurrentStep = jobModel.BatchScraping
	payload := job.JobPayload

	progress := func(p knowledgeModel.Progress, b *knowledgeModel.BatchJob) {
		job.JobPayload.Batch = b
		if saveProgress != nil {
			saveProgress(job)
		}
	}

	var urls []string
	stopOnError := false
	mode := knowledgeModel.BatchModeList
	if payload.Batch != nil {
		urls = payload.Batch.URLs
		stopOnError = payload.Batch.StopOnError
		mode = payload.Batch.Mode
	}

	var result *knowledgeModel.BatchJob
	switch mode {
	case knowledgeModel.BatchModeSitemap:
		result = s.orchestrator.RunSitemap(ctx, job.BotId, payload.ScrapeURL, payload.ChunkSize, stopOnError, progress)
	case knowledgeModel.BatchModeCrawl:
		result = s.orchestrator.RunCrawl(ctx, job.BotId, payload.ScrapeURL, payload.ChunkSize, stopOnError, progress)
	default:
		result = s.orchestrator.RunList(ctx, job.BotId, urls, payload.ChunkSize, stopOnError, progress)
	}

	job.JobPayload.Batch = result
	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	return job
}

// ScrapeAndEmbed implements batch.Pipeline for one URL: resolve, extract,
// chunk, embed.
func (s *service) ScrapeAndEmbed(ctx context.Context, botId string, url string, chunkSize int) (int, error) {
	raw, err := s.resolver.Resolve(ctx, url)
	if err != nil {
		return 0, err
	}
	return s.EmbedResolved(ctx, botId, url, raw, chunkSize)
}

// EmbedResolved continues the pipeline from already-fetched content (crawl
// seeds are fetched once for both link harvesting and ingestion).
func (s *service) EmbedResolved(ctx context.Context, botId string, url string, raw string, chunkSize int) (int, error) {
	doc := s.extractor.Summarize(ctx, url, extract.BodyText(raw))
	if _, err := s.ingestor.EmbedText(ctx, botId, url, doc.Text, chunkSize); err != nil {
		return 0, err
	}
	return len(doc.Text), nil
}

func (s *service) scrapeAndEmbedWithReport(ctx context.Context, job *jobModel.Job, botId string, url string) (*knowledgeModel.ChunkReport, error) {
	raw, err := s.resolver.Resolve(ctx, url)
	if err != nil {
		return nil, err
	}

	job.CurrentStep = jobModel.Extracting
	doc := s.extractor.Summarize(ctx, url, extract.BodyText(raw))

	job.CurrentStep = jobModel.Chunking
	report, err := s.ingestor.EmbedText(ctx, botId, url, doc.Text, job.JobPayload.ChunkSize)
	if err != nil {
		return &report, err
	}
	return &report, nil
}
