package batch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
)

type mockPipeline struct {
	scrapeFunc func(ctx context.Context, botId string, url string) (int, error)
	embedFunc  func(ctx context.Context, botId string, url string, raw string) (int, error)
	chunkSizes []int //one entry per pipeline call, in call order
}

func (m *mockPipeline) ScrapeAndEmbed(ctx context.Context, botId string, url string, chunkSize int) (int, error) {
	m.chunkSizes = append(m.chunkSizes, chunkSize)
	return m.scrapeFunc(ctx, botId, url)
}

func (m *mockPipeline) EmbedResolved(ctx context.Context, botId string, url string, raw string, chunkSize int) (int, error) {
	if m.embedFunc == nil {
		return 0, errors.New("unexpected EmbedResolved call")
	}
	m.chunkSizes = append(m.chunkSizes, chunkSize)
	return m.embedFunc(ctx, botId, url, raw)
}

func fastConfig() Config {
	return Config{
		ListDelay:      time.Millisecond,
		CrawlDelay:     time.Millisecond,
		MaxSitemapURLs: 30,
		MaxCrawlLinks:  20,
		URLLimit:       50,
	}
}

func failResolve(ctx context.Context, url string) (string, error) {
	return "", errors.New("unreachable")
}

func TestRunList_OutcomesInSubmissionOrder(t *testing.T) {
	pipeline := &mockPipeline{
		scrapeFunc: func(ctx context.Context, botId string, url string) (int, error) {
			if strings.Contains(url, "blocked") {
				return 0, errors.New("403 blocked")
			}
			return 1200, nil
		},
	}
	o := NewOrchestrator(fastConfig(), pipeline, failResolve, nil, nil)

	urls := []string{"https://a.com", "https://blocked.com", "https://c.com"}
	job := o.RunList(context.Background(), "bot-1", urls, 0, false, nil)

	if len(job.Outcomes) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(job.Outcomes))
	}
	for i, outcome := range job.Outcomes {
		if outcome.URL != urls[i] {
			t.Errorf("Outcome %d URL got %s, want %s", i, outcome.URL, urls[i])
		}
	}
	if job.Completed != 3 || job.Succeeded != 2 || job.Failed != 1 {
		t.Errorf("Counts got completed=%d succeeded=%d failed=%d, want 3/2/1",
			job.Completed, job.Succeeded, job.Failed)
	}
	if job.Stage != StageComplete {
		t.Errorf("Stage got %s, want %s", job.Stage, StageComplete)
	}
	if job.Outcomes[1].Error == "" {
		t.Error("Failed outcome should carry its error text")
	}
}

func TestRunList_StopOnErrorHalts(t *testing.T) {
	pipeline := &mockPipeline{
		scrapeFunc: func(ctx context.Context, botId string, url string) (int, error) {
			if url == "https://bad.com" {
				return 0, errors.New("boom")
			}
			return 100, nil
		},
	}
	o := NewOrchestrator(fastConfig(), pipeline, failResolve, nil, nil)

	job := o.RunList(context.Background(), "bot-1",
		[]string{"https://ok.com", "https://bad.com", "https://never.com"}, 0, true, nil)

	if len(job.Outcomes) != 2 {
		t.Fatalf("Expected halt after 2 outcomes, got %d", len(job.Outcomes))
	}
	if job.Stage != StageHalted {
		t.Errorf("Stage got %s, want %s", job.Stage, StageHalted)
	}
}

func TestRunList_ProgressFiresAfterEachOutcome(t *testing.T) {
	pipeline := &mockPipeline{
		scrapeFunc: func(ctx context.Context, botId string, url string) (int, error) {
			return 50, nil
		},
	}
	o := NewOrchestrator(fastConfig(), pipeline, failResolve, nil, nil)

	var snapshots []knowledgeModel.Progress
	progress := func(p knowledgeModel.Progress, job *knowledgeModel.BatchJob) {
		if p.Completed != len(job.Outcomes) {
			t.Errorf("Progress fired before outcome recorded: completed=%d outcomes=%d",
				p.Completed, len(job.Outcomes))
		}
		snapshots = append(snapshots, p)
	}

	o.RunList(context.Background(), "bot-1", []string{"https://a.com", "https://b.com"}, 0, false, progress)

	if len(snapshots) != 2 {
		t.Fatalf("Expected 2 progress callbacks, got %d", len(snapshots))
	}
	if snapshots[0].Completed != 1 || snapshots[1].Completed != 2 {
		t.Errorf("Completed sequence got %d,%d want 1,2", snapshots[0].Completed, snapshots[1].Completed)
	}
	if snapshots[1].CurrentURL != "https://b.com" {
		t.Errorf("CurrentURL got %s, want https://b.com", snapshots[1].CurrentURL)
	}
}

func TestRunList_CancellationStopsNewURLs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	pipeline := &mockPipeline{
		scrapeFunc: func(ctx context.Context, botId string, url string) (int, error) {
			cancel() //cancel mid-batch, after the first URL started
			return 10, nil
		},
	}
	cfg := fastConfig()
	cfg.ListDelay = 50 * time.Millisecond
	o := NewOrchestrator(cfg, pipeline, failResolve, nil, nil)

	job := o.RunList(ctx, "bot-1", []string{"https://a.com", "https://b.com", "https://c.com"}, 0, false, nil)

	if job.Stage != StageCancelled {
		t.Errorf("Stage got %s, want %s", job.Stage, StageCancelled)
	}
	if len(job.Outcomes) != 1 {
		t.Errorf("Expected the in-flight URL to finish and no more, got %d outcomes", len(job.Outcomes))
	}
}

func TestRunSitemap_FetchFailureIsRecorded(t *testing.T) {
	o := NewOrchestrator(fastConfig(), &mockPipeline{}, failResolve, nil, nil)

	job := o.RunSitemap(context.Background(), "bot-1", "https://a.com/sitemap.xml", 0, false, nil)

	if len(job.Outcomes) != 1 || job.Outcomes[0].Success {
		t.Fatalf("Expected one failed outcome for the sitemap fetch, got %+v", job.Outcomes)
	}
	if job.Failed != 1 {
		t.Errorf("Failed got %d, want 1", job.Failed)
	}
}

func TestRunSitemap_WalksParsedURLs(t *testing.T) {
	resolve := func(ctx context.Context, url string) (string, error) {
		return "<urlset/>", nil
	}
	parse := func(body string, max int) ([]string, error) {
		return []string{"https://a.com/1", "https://a.com/2"}, nil
	}
	pipeline := &mockPipeline{
		scrapeFunc: func(ctx context.Context, botId string, url string) (int, error) {
			return 900, nil
		},
	}
	o := NewOrchestrator(fastConfig(), pipeline, resolve, parse, nil)

	job := o.RunSitemap(context.Background(), "bot-1", "https://a.com/sitemap.xml", 0, false, nil)

	if job.Succeeded != 2 || job.Completed != 2 {
		t.Errorf("Counts got succeeded=%d completed=%d, want 2/2", job.Succeeded, job.Completed)
	}
	if job.Mode != knowledgeModel.BatchModeSitemap {
		t.Errorf("Mode got %s, want sitemap", job.Mode)
	}
}

func TestRunCrawl_SeedFetchedOnce(t *testing.T) {
	resolveCalls := 0
	resolve := func(ctx context.Context, url string) (string, error) {
		resolveCalls++
		return "<html><a href='/about'>about</a></html>", nil
	}
	links := func(seedURL string, raw string, max int) []string {
		return []string{"https://a.com/about"}
	}

	embedCalls := 0
	pipeline := &mockPipeline{
		embedFunc: func(ctx context.Context, botId string, url string, raw string) (int, error) {
			embedCalls++
			return 500, nil
		},
		scrapeFunc: func(ctx context.Context, botId string, url string) (int, error) {
			return 300, nil
		},
	}
	o := NewOrchestrator(fastConfig(), pipeline, resolve, nil, links)

	job := o.RunCrawl(context.Background(), "bot-1", "https://a.com", 0, false, nil)

	if resolveCalls != 1 {
		t.Errorf("Seed should be fetched exactly once, got %d fetches", resolveCalls)
	}
	if embedCalls != 1 {
		t.Errorf("Seed content should be embedded from the single fetch, got %d", embedCalls)
	}
	if job.Completed != 2 || job.Succeeded != 2 {
		t.Errorf("Counts got completed=%d succeeded=%d, want 2/2", job.Completed, job.Succeeded)
	}
	if job.Outcomes[0].URL != "https://a.com" {
		t.Errorf("Seed outcome must come first, got %s", job.Outcomes[0].URL)
	}
}

func TestRunList_OverLimitURLsStillGetOutcomes(t *testing.T) {
	pipeline := &mockPipeline{
		scrapeFunc: func(ctx context.Context, botId string, url string) (int, error) {
			return 10, nil
		},
	}
	cfg := fastConfig()
	cfg.URLLimit = 2
	o := NewOrchestrator(cfg, pipeline, failResolve, nil, nil)

	urls := []string{"https://a.com", "https://b.com", "https://c.com"}
	job := o.RunList(context.Background(), "bot-1", urls, 0, false, nil)

	if len(job.Outcomes) != len(urls) {
		t.Fatalf("Every submitted URL needs a terminal outcome, got %d of %d", len(job.Outcomes), len(urls))
	}
	if len(pipeline.chunkSizes) != 2 {
		t.Errorf("Only URLs within the limit should be scraped, got %d pipeline calls", len(pipeline.chunkSizes))
	}
	over := job.Outcomes[2]
	if over.Success || over.Error == "" {
		t.Errorf("Over-limit URL must be recorded as failed with a reason, got %+v", over)
	}
	if job.Failed != 1 || job.Succeeded != 2 {
		t.Errorf("Counts got succeeded=%d failed=%d, want 2/1", job.Succeeded, job.Failed)
	}
}

func TestRunList_ChunkSizeReachesPipeline(t *testing.T) {
	pipeline := &mockPipeline{
		scrapeFunc: func(ctx context.Context, botId string, url string) (int, error) {
			return 10, nil
		},
	}
	o := NewOrchestrator(fastConfig(), pipeline, failResolve, nil, nil)

	o.RunList(context.Background(), "bot-1", []string{"https://a.com", "https://b.com"}, 256, false, nil)

	if len(pipeline.chunkSizes) != 2 {
		t.Fatalf("Expected 2 pipeline calls, got %d", len(pipeline.chunkSizes))
	}
	for i, size := range pipeline.chunkSizes {
		if size != 256 {
			t.Errorf("Call %d got chunk size %d, want 256", i, size)
		}
	}
}
