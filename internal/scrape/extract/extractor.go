package extract

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

const extractorInstructions = "You extract business knowledge from scraped web pages. From the page content, extract: the business identity and description, services or products offered, contact details, and opening hours or pricing when present. Write a dense factual summary, no commentary."

type Config struct {
	CharCeiling          int //raw text is truncated here before the completion call
	DegradedPrefixLength int //prefix kept when summarization fails
}

type Extractor struct {
	complete CompletionFunc
	cfg      Config
	logger   *logger_i.Logger
}

// CompletionFunc issues one completion call and reports whether it produced
// usable text. The batch orchestrator and scrape jobs inject the gateway
// here; tests inject stubs.
type CompletionFunc func(ctx context.Context, instructions string, content string) (string, error)

func NewExtractor(cfg Config, complete CompletionFunc) *Extractor {
	if cfg.CharCeiling <= 0 {
		cfg.CharCeiling = config.ExtractCharCeiling
	}
	if cfg.DegradedPrefixLength <= 0 {
		cfg.DegradedPrefixLength = config.DegradedPrefixLength
	}
	return &Extractor{
		complete: complete,
		cfg:      cfg,
		logger:   logger_i.NewLogger("ContentExtractor"),
	}
}

// Summarize turns raw fetched text into a bounded knowledge document. The
// input is truncated deterministically before the call; a failed
// summarization degrades to a bounded prefix of the raw text so the source
// is never wasted.
func (e *Extractor) Summarize(ctx context.Context, sourceURL string, raw string) knowledgeModel.KnowledgeDocument {
	log := e.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "url", sourceURL)

	truncated := Truncate(raw, e.cfg.CharCeiling)

	prompt := fmt.Sprintf("Page URL: %s\n\nPage content:\n%s", sourceURL, truncated)
	summary, err := e.complete(ctx, extractorInstructions, prompt)
	if err != nil || summary == "" {
		log.Warn("extraction degraded, keeping raw prefix", "error", err)
		return knowledgeModel.KnowledgeDocument{
			SourceURL:   sourceURL,
			Text:        Truncate(truncated, e.cfg.DegradedPrefixLength),
			Degraded:    true,
			ExtractedAt: time.Now(),
		}
	}

	log.Debug("extracted knowledge summary", "rawSize", len(raw), "summarySize", len(summary))
	return knowledgeModel.KnowledgeDocument{
		SourceURL:   sourceURL,
		Text:        summary,
		ExtractedAt: time.Now(),
	}
}

// Truncate is deterministic: identical input and ceiling always yield the
// same bounded output. A ceiling landing mid-rune backs up to the previous
// rune boundary so the result stays valid UTF-8.
func Truncate(text string, ceiling int) string {
	if len(text) <= ceiling {
		return text
	}
	cut := ceiling
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
