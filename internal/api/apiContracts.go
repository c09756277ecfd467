package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	SessionId string            `json:"session_id,omitempty" example:"session_550"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type ChatResult struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources,omitempty"`
	TokensUsed int      `json:"tokens_used,omitempty"`
}

type IngestionResult struct {
	SourceName      string `json:"source_name"`
	ChunksProcessed int    `json:"chunks_processed"`
	ChunksFailed    int    `json:"chunks_failed"`
	TotalTokens     int    `json:"total_tokens"`
}

type URLResult struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Size    int    `json:"size,omitempty"`
	Error   string `json:"error,omitempty"`
}

type BatchResult struct {
	Mode      string      `json:"mode"`
	Stage     string      `json:"stage"`
	Total     int         `json:"total"`
	Completed int         `json:"completed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Outcomes  []URLResult `json:"outcomes,omitempty"`
}

type Result struct {
	Status    string           `json:"status"`
	Chat      *ChatResult      `json:"chat,omitempty"`
	Ingestion *IngestionResult `json:"ingestion,omitempty"`
	Batch     *BatchResult     `json:"batch,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	SessionId string `json:"session_id,omitempty"`
	StatusURL string `json:"status_url"`
}

// requests---------------------

type ChatRequest struct {
	BotId           string `json:"bot_id" validate:"required"`
	SessionID       string `json:"session_id,omitempty"`
	Message         string `json:"message" validate:"required"`
	ResponseDelayMs int    `json:"response_delay_ms,omitempty"`
}

type ScrapeRequest struct {
	BotId     string `json:"bot_id" validate:"required"`
	URL       string `json:"url" validate:"required"`
	ChunkSize int    `json:"chunk_size,omitempty"`
}

type BatchScrapeRequest struct {
	BotId string `json:"bot_id" validate:"required"`
	//list, sitemap or crawl
	Mode string `json:"mode,omitempty"`
	//list mode
	URLs []string `json:"urls,omitempty"`
	//sitemap and crawl modes
	URL         string `json:"url,omitempty"`
	StopOnError bool   `json:"stop_on_error,omitempty"`
	ChunkSize   int    `json:"chunk_size,omitempty"`
}

type KnowledgeRequest struct {
	BotId     string `json:"bot_id" validate:"required"`
	Content   string `json:"content" validate:"required"`
	Name      string `json:"name,omitempty"`
	ChunkSize int    `json:"chunk_size,omitempty"`
}

type JobStatusRequest struct {
	JobId string `json:"job_id" validate:"required"`
}
