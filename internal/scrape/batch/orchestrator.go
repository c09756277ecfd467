package batch

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/internal/metrics"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

// Stage labels surfaced to polling clients.
const (
	StageCollecting = "collecting"
	StageScraping   = "scraping"
	StageHalted     = "halted"
	StageCancelled  = "cancelled"
	StageComplete   = "complete"
)

// Pipeline is the per-URL ingestion this orchestrator drives: transport
// resolution, knowledge extraction and chunk embedding for one URL. The
// returned size is the extracted document length. A zero chunkSize means the
// default token budget.
type Pipeline interface {
	ScrapeAndEmbed(ctx context.Context, botId string, url string, chunkSize int) (int, error)
	EmbedResolved(ctx context.Context, botId string, url string, raw string, chunkSize int) (int, error)
}

// ResolveFunc fetches one URL's raw content (sitemap documents, crawl seeds).
type ResolveFunc func(ctx context.Context, url string) (string, error)

// ProgressFunc fires strictly after each URL's outcome is known, never
// optimistically.
type ProgressFunc func(progress knowledgeModel.Progress, job *knowledgeModel.BatchJob)

type Config struct {
	ListDelay      time.Duration //between successive URL attempts in list mode
	CrawlDelay     time.Duration //sitemap and crawl modes hit one host harder
	MaxSitemapURLs int
	MaxCrawlLinks  int
	URLLimit       int //hard cap on explicit lists
}

func DefaultConfig() Config {
	return Config{
		ListDelay:      config.BatchScrapeDelay,
		CrawlDelay:     config.BatchCrawlDelay,
		MaxSitemapURLs: config.MaxSitemapURLs,
		MaxCrawlLinks:  config.MaxCrawlLinks,
		URLLimit:       config.BatchURLLimit,
	}
}

type Orchestrator struct {
	pipeline     Pipeline
	resolve      ResolveFunc
	parseSitemap func(body string, max int) ([]string, error)
	extractLinks func(seedURL string, raw string, max int) []string
	cfg          Config
	logger       *logger_i.Logger
}

func NewOrchestrator(cfg Config, pipeline Pipeline, resolve ResolveFunc,
	parseSitemap func(string, int) ([]string, error),
	extractLinks func(string, string, int) []string) *Orchestrator {
	return &Orchestrator{
		pipeline:     pipeline,
		resolve:      resolve,
		parseSitemap: parseSitemap,
		extractLinks: extractLinks,
		cfg:          cfg,
		logger:       logger_i.NewLogger("BatchOrchestrator"),
	}
}

// RunList scrapes an explicit URL list. URLs are attempted strictly one at a
// time with an enforced delay between attempts; this is deliberate
// backpressure against third-party rate limits, not a missing optimization.
// Every submitted URL gets a terminal outcome: URLs past the limit are not
// scraped but are recorded as failed, never dropped.
func (o *Orchestrator) RunList(ctx context.Context, botId string, urls []string, chunkSize int, stopOnError bool, progress ProgressFunc) *knowledgeModel.BatchJob {
	var overflow []string
	attempted := urls
	if len(urls) > o.cfg.URLLimit {
		attempted = urls[:o.cfg.URLLimit]
		overflow = urls[o.cfg.URLLimit:]
	}

	job := o.newJob(knowledgeModel.BatchModeList, urls, stopOnError)
	o.runInto(ctx, job, botId, attempted, chunkSize, o.cfg.ListDelay, progress)

	if job.Stage == StageComplete {
		for _, target := range overflow {
			o.recordOutcome(job, knowledgeModel.URLOutcome{URL: target, Error: "batch url limit exceeded"}, progress)
		}
	}
	return job
}

// RunSitemap fetches the sitemap document, extracts its <loc> URLs up to the
// cap, then runs list mode over them.
func (o *Orchestrator) RunSitemap(ctx context.Context, botId string, sitemapURL string, chunkSize int, stopOnError bool, progress ProgressFunc) *knowledgeModel.BatchJob {
	job := o.newJob(knowledgeModel.BatchModeSitemap, nil, stopOnError)
	job.Stage = StageCollecting

	body, err := o.resolve(ctx, sitemapURL)
	if err != nil {
		o.recordOutcome(job, knowledgeModel.URLOutcome{URL: sitemapURL, Error: err.Error()}, progress)
		job.Stage = StageComplete
		return job
	}

	urls, err := o.parseSitemap(body, o.cfg.MaxSitemapURLs)
	if err != nil {
		o.recordOutcome(job, knowledgeModel.URLOutcome{URL: sitemapURL, Error: err.Error()}, progress)
		job.Stage = StageComplete
		return job
	}

	job.URLs = urls
	o.runInto(ctx, job, botId, urls, chunkSize, o.cfg.CrawlDelay, progress)
	return job
}

// RunCrawl scrapes the seed once, harvests same-domain links from its
// resolved content up to the cap, then runs list mode over those links. The
// seed's own content is embedded from the single fetch.
func (o *Orchestrator) RunCrawl(ctx context.Context, botId string, seedURL string, chunkSize int, stopOnError bool, progress ProgressFunc) *knowledgeModel.BatchJob {
	job := o.newJob(knowledgeModel.BatchModeCrawl, []string{seedURL}, stopOnError)
	job.Stage = StageCollecting

	raw, err := o.resolve(ctx, seedURL)
	if err != nil {
		o.recordOutcome(job, knowledgeModel.URLOutcome{URL: seedURL, Error: err.Error()}, progress)
		job.Stage = StageComplete
		return job
	}

	size, err := o.pipeline.EmbedResolved(ctx, botId, seedURL, raw, chunkSize)
	seedOutcome := knowledgeModel.URLOutcome{URL: seedURL, Success: err == nil, Size: size}
	if err != nil {
		seedOutcome.Error = err.Error()
	}
	o.recordOutcome(job, seedOutcome, progress)

	if !seedOutcome.Success && stopOnError {
		job.Stage = StageHalted
		return job
	}

	links := o.extractLinks(seedURL, raw, o.cfg.MaxCrawlLinks)
	job.URLs = append(job.URLs, links...)
	o.runInto(ctx, job, botId, links, chunkSize, o.cfg.CrawlDelay, progress)
	return job
}

func (o *Orchestrator) newJob(mode knowledgeModel.BatchMode, urls []string, stopOnError bool) *knowledgeModel.BatchJob {
	return &knowledgeModel.BatchJob{
		Mode:        mode,
		URLs:        urls,
		Stage:       StageScraping,
		StopOnError: stopOnError,
	}
}

// runInto drives the serial scrape loop. Outcomes land in submission order;
// no outcome is ever dropped. Cancellation stops accepting new URLs but the
// in-flight attempt runs to its own timeout.
func (o *Orchestrator) runInto(ctx context.Context, job *knowledgeModel.BatchJob, botId string, urls []string, chunkSize int, delay time.Duration, progress ProgressFunc) {
	log := o.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "botId", botId, "mode", job.Mode)
	job.Stage = StageScraping

	limiter := rate.NewLimiter(rate.Every(delay), 1)

	for _, target := range urls {
		if err := limiter.Wait(ctx); err != nil {
			log.Warn("batch cancelled", "remaining", len(urls)-job.Completed)
			job.Stage = StageCancelled
			return
		}

		size, err := o.pipeline.ScrapeAndEmbed(ctx, botId, target, chunkSize)

		outcome := knowledgeModel.URLOutcome{URL: target, Success: err == nil, Size: size}
		if err != nil {
			outcome.Error = err.Error()
			log.Warn("url failed", "url", target, "error", err)
		}
		o.recordOutcome(job, outcome, progress)

		if !outcome.Success && job.StopOnError {
			log.Info("halting batch on first failure", "url", target)
			job.Stage = StageHalted
			return
		}
	}

	job.Stage = StageComplete
	log.Info("batch finished", "completed", job.Completed, "succeeded", job.Succeeded, "failed", job.Failed)
}

func (o *Orchestrator) recordOutcome(job *knowledgeModel.BatchJob, outcome knowledgeModel.URLOutcome, progress ProgressFunc) {
	job.Outcomes = append(job.Outcomes, outcome)
	job.Completed++
	if outcome.Success {
		job.Succeeded++
	} else {
		job.Failed++
	}
	metrics.CountBatchURLOutcome(outcome.Success)

	if progress != nil {
		progress(knowledgeModel.Progress{
			Total:      len(job.URLs),
			Completed:  job.Completed,
			Succeeded:  job.Succeeded,
			Failed:     job.Failed,
			CurrentURL: outcome.URL,
			Stage:      job.Stage,
		}, job)
	}
}
