package knowledgeModel

import "time"

type SourceKind string

const (
	SourceURL        SourceKind = "URL"
	SourceUpload     SourceKind = "UPLOAD"
	SourceManualText SourceKind = "MANUAL"
)

// Source is a content origin. Re-scrapes create a new Source, they never
// mutate an existing one.
type Source struct {
	Id         string     `json:"source_id"`
	BotId      string     `json:"bot_id"`
	Kind       SourceKind `json:"kind"`
	Location   string     `json:"location"` //URL or temp file path
	Name       string     `json:"name"`
	MediaType  string     `json:"media_type,omitempty"`
	RawSize    int        `json:"raw_size"`
	CapturedAt time.Time  `json:"captured_at"`
}

// KnowledgeDocument is the extracted summary produced from a Source. Text is
// always bounded upstream by the extraction char ceiling.
type KnowledgeDocument struct {
	SourceId    string    `json:"source_id"`
	SourceURL   string    `json:"source_url,omitempty"`
	Text        string    `json:"text"`
	Degraded    bool      `json:"degraded"` //summarization failed, raw prefix kept
	ExtractedAt time.Time `json:"extracted_at"`
}

// KnowledgeChunk is one bounded slice of a document prepared for retrieval.
// Index values are contiguous and gap-free per document.
type KnowledgeChunk struct {
	ChunkId    string `json:"chunk_id"`
	DocumentId string `json:"source_doc_id"`
	BotId      string `json:"bot_id"`
	SourceName string `json:"source_name"`
	Index      int    `json:"chunk_index"`
	Text       string `json:"content"`
	TokenCount int    `json:"token_count"`
}

// ChunkReport is what the embedding step hands back to the caller for quota
// accounting. Partial failure is counts, not an error.
type ChunkReport struct {
	FileName        string `json:"file_name"`
	ChunksProcessed int    `json:"chunks_processed"`
	ChunksFailed    int    `json:"chunks_failed"`
	TotalTokens     int    `json:"total_tokens"`
}

type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// ConversationTurn is append-only; ordering is owned by the conversation.
type ConversationTurn struct {
	Role      TurnRole  `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type LeadCandidate struct {
	BotId      string    `json:"bot_id"`
	Email      string    `json:"email"`
	SourceURL  string    `json:"source_url,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

type BatchMode string

const (
	BatchModeList    BatchMode = "list"
	BatchModeSitemap BatchMode = "sitemap"
	BatchModeCrawl   BatchMode = "crawl"
)

// URLOutcome is the terminal result for one URL in a batch. Size is the
// extracted-document length on success.
type URLOutcome struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Size    int    `json:"size,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BatchJob tracks a multi-URL scrape. Outcomes are appended in submission
// order and never dropped.
type BatchJob struct {
	Mode        BatchMode    `json:"mode"`
	URLs        []string     `json:"urls"`
	Outcomes    []URLOutcome `json:"outcomes"`
	Completed   int          `json:"completed"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Stage       string       `json:"stage"`
	StopOnError bool         `json:"stop_on_error"`
}

// Progress is delivered to the callback strictly after each URL's outcome is
// known.
type Progress struct {
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	CurrentURL string `json:"current_url"`
	Stage      string `json:"stage"`
}
