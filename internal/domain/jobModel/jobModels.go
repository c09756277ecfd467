package jobModel

import (
	"context"
	"time"

	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	ChatInit         InternalStatus = "Init"
	TransportResolve InternalStatus = "TransportResolve"
	Extracting       InternalStatus = "Extracting"
	Chunking         InternalStatus = "Chunking"
	EmbeddingAPICall InternalStatus = "EmbeddingAPI"
	CacheCall        InternalStatus = "Cache"
	VectorDBCall     InternalStatus = "VectorDB"
	LLMCall          InternalStatus = "LLM"
	RedisCall        InternalStatus = "Redis"
	BatchScraping    InternalStatus = "BatchScraping"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeChat        JobType = "Chat"
	JobTypeScrape      JobType = "Scrape"
	JobTypeBatchScrape JobType = "BatchScrape"
	JobTypeEmbed       JobType = "Embed"
)

type Job struct {
	Id          string         `json:"id"`
	BotId       string         `json:"bot_id"`
	SessionId   string         `json:"session_id,omitempty"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	//chat
	Message         string   `json:"message,omitempty"`
	Answer          string   `json:"answer,omitempty"`
	Sources         []string `json:"sources,omitempty"`
	TotalTokensUsed int      `json:"total_tokens_used,omitempty"`
	ResponseDelayMs int      `json:"response_delay_ms,omitempty"`

	//scrape / embed
	ScrapeURL string `json:"scrape_url,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	FileType  string `json:"file_type,omitempty"`
	FilePath  string `json:"file_path,omitempty"`
	Content   string `json:"content,omitempty"`
	ChunkSize int    `json:"chunk_size,omitempty"`

	ChunkReport *knowledgeModel.ChunkReport `json:"chunk_report,omitempty"`

	//batch scrape
	Batch *knowledgeModel.BatchJob `json:"batch,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

type ConversationStore interface {
	ValidateSessionId(ctx context.Context, id string) bool
	InitNewSession(ctx context.Context, id string) error
	AppendTurn(ctx context.Context, id string, turn knowledgeModel.ConversationTurn) error
	GetHistory(ctx context.Context, sessionId string) ([]knowledgeModel.ConversationTurn, error)
}
