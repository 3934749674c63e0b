// Package crawler implements the bounded-concurrency breadth-first crawl
// engine: the work queue, the visited set, the worker pool, and the
// coordinator that turns one seed URL into a final report.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lgraba/crawler/internal/config"
	"github.com/lgraba/crawler/internal/fetcher"
	"github.com/lgraba/crawler/internal/processor"
	"github.com/lgraba/crawler/internal/urlutil"
	"github.com/lgraba/crawler/pkg/types"
)

// Engine coordinates one breadth-first crawl: it seeds the queue, runs the
// worker pool, waits for the frontier to drain, and assembles the report.
// An Engine performs exactly one crawl; Run must not be called twice.
type Engine struct {
	cfg    config.Config
	fetch  fetcher.Fetcher
	proc   processor.Processor
	logger *slog.Logger

	startURL  *url.URL
	allowed   map[string]struct{}
	blacklist map[string]struct{}

	queue   *Queue
	visited *Visited
	limiter *semaphore.Weighted
	stats   *statsTracker

	mu      sync.Mutex
	results []types.Result
}

// Option customises engine construction, mainly for injecting the transport
// and extraction capabilities in tests.
type Option func(*Engine)

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(e *Engine) { e.fetch = f }
}

// WithProcessor replaces the default HTML processor.
func WithProcessor(p processor.Processor) Option {
	return func(e *Engine) { e.proc = p }
}

// WithLogger replaces the logger derived from configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine builds a crawl engine from configuration. It fails fast, before
// any network I/O, when the start URL is not an absolute http(s)-style URL
// or the configuration is otherwise invalid.
func NewEngine(cfg config.Config, opts ...Option) (*Engine, error) {
	cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	startURL, err := urlutil.Parse(cfg.Crawl.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start url: %w", err)
	}

	engine := &Engine{
		cfg:       cfg,
		startURL:  startURL,
		allowed:   urlutil.DomainSet(cfg.Crawl.AllowedDomains),
		blacklist: urlutil.ExtensionSet(cfg.EffectiveBlacklist()),
		queue:     NewQueue(),
		visited:   NewVisited(),
		limiter:   semaphore.NewWeighted(int64(cfg.Crawl.Concurrency)),
		stats:     newStatsTracker(),
	}

	for _, opt := range opts {
		opt(engine)
	}

	if engine.logger == nil {
		logger, err := buildLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
		engine.logger = logger
	}
	if engine.fetch == nil {
		engine.fetch = fetcher.NewHTTPFetcher(fetcher.Options{
			UserAgent:    cfg.Fetch.UserAgent,
			Headers:      cfg.Fetch.Headers,
			Timeout:      cfg.Fetch.Timeout.Duration,
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
			VerifySSL:    cfg.Fetch.VerifySSL,
		})
	}
	if engine.proc == nil {
		engine.proc = processor.NewHTMLProcessor()
	}

	engine.logger.Info("crawler initialised",
		"start_url", startURL.String(),
		"max_depth", cfg.Crawl.MaxDepth,
		"allowed_domains", cfg.Crawl.AllowedDomains,
		"blacklist_extensions", len(engine.blacklist),
		"concurrency", cfg.Crawl.Concurrency,
		"timeout", cfg.Fetch.Timeout.Duration,
		"verify_ssl", cfg.Fetch.VerifySSL,
	)
	return engine, nil
}

// Run executes the crawl until the frontier drains or ctx is cancelled, then
// returns the report. A start URL rejected by the crawl filters yields a
// valid empty report, not an error. On cancellation the partial report is
// returned together with the context error.
func (e *Engine) Run(ctx context.Context) (*types.Report, error) {
	if !urlutil.InScope(e.startURL, e.allowed, e.blacklist) {
		e.logger.Error("start url rejected by crawl filters", "url", e.startURL.String())
		return e.report(time.Time{}, time.Time{}), nil
	}

	start := time.Now()

	e.visited.TryClaim(e.startURL.String())
	e.queue.Put(&types.Task{URL: e.startURL, Depth: 0})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Crawl.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			e.worker(workerCtx, id)
		}(i)
	}

	joinErr := e.queue.Join(ctx)
	if joinErr != nil {
		e.logger.Warn("crawl interrupted before frontier drained", "error", joinErr)
	} else {
		e.logger.Info("frontier drained, stopping workers")
	}

	stopWorkers()
	if err := e.waitForWorkers(&wg); err != nil {
		e.logger.Warn("worker shutdown incomplete", "error", err)
	}

	end := time.Now()
	report := e.report(start, end)
	e.logger.Info("crawl finished",
		"duration_seconds", report.Stats.DurationSeconds,
		"urls_processed", report.Stats.TotalURLsProcessed,
		"request_errors", report.Stats.TotalErrorsRequest,
		"processing_errors", report.Stats.TotalErrorsProcessing,
	)
	return report, joinErr
}

// waitForWorkers bounds the shutdown wait so a worker stuck mid-request can
// never hang the coordinator; in-flight requests are context-cancelled and
// unwind on their own timeout at the latest.
func (e *Engine) waitForWorkers(wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(e.cfg.Crawl.ShutdownTimeout.Duration)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("workers still running after %s", e.cfg.Crawl.ShutdownTimeout)
	}
}

func (e *Engine) worker(ctx context.Context, id int) {
	e.logger.Debug("worker starting", "worker", id)
	for {
		task, err := e.queue.Take(ctx)
		if err != nil {
			e.logger.Debug("worker stopping", "worker", id, "reason", err)
			return
		}
		e.handle(ctx, id, task)
		e.queue.TaskDone()
	}
}

// handle processes one dequeued task. Per-URL failures of any kind are
// classified and counted; they never terminate the worker loop.
func (e *Engine) handle(ctx context.Context, id int, task *types.Task) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("worker fault", "worker", id, "url", task.URL.String(), "panic", r)
			e.stats.processingError()
		}
	}()

	if err := e.limiter.Acquire(ctx, 1); err != nil {
		// Shutdown while waiting for a request slot.
		return
	}
	defer e.limiter.Release(1)

	e.process(ctx, task)
}

func (e *Engine) process(ctx context.Context, task *types.Task) {
	e.stats.markProcessed(urlutil.Domain(task.URL))

	result := types.Result{URL: task.URL.String(), Depth: task.Depth}
	defer func() {
		result.Timestamp = time.Now().UTC()
		e.appendResult(result)
	}()

	e.logger.Info("fetching", "url", task.URL.String(), "depth", task.Depth)
	page, err := e.fetch.Fetch(ctx, task.URL)
	if err != nil {
		var reqErr *fetcher.RequestError
		if errors.As(err, &reqErr) {
			e.logger.Warn("request error", "url", task.URL.String(), "error", err)
			result.Error = fmt.Sprintf("Request Error: %v", reqErr.Unwrap())
			e.stats.requestError()
			return
		}
		e.logger.Warn("processing error", "url", task.URL.String(), "error", err)
		result.Error = fmt.Sprintf("Processing Error: %v", err)
		e.stats.processingError()
		return
	}

	result.StatusCode = page.StatusCode
	result.ContentSize = len(page.Body)
	e.stats.recordStatus(page.StatusCode)

	if page.StatusCode >= 400 {
		e.logger.Warn("http error status", "url", task.URL.String(), "status", page.StatusCode)
		result.Error = fmt.Sprintf("HTTP Status %d", page.StatusCode)
		return
	}

	if !strings.Contains(strings.ToLower(page.ContentType), "text/html") {
		e.logger.Debug("non-html content skipped for link extraction",
			"url", task.URL.String(), "content_type", page.ContentType)
		return
	}

	content, err := e.proc.Extract(page.Body)
	if err != nil {
		e.logger.Warn("extraction failed", "url", task.URL.String(), "error", err)
		result.Error = fmt.Sprintf("Processing Error: %v", err)
		e.stats.processingError()
		return
	}
	result.Title = content.Title

	if task.Depth >= e.cfg.Crawl.MaxDepth {
		return
	}

	// Candidate links resolve against the fetched URL so relative hrefs on
	// redirected pages land where the server put them.
	base := page.FinalURL
	if base == nil {
		base = task.URL
	}
	for _, href := range content.Links {
		e.admit(base, href, task.Depth+1)
	}
}

// admit normalizes one discovered link and enqueues it when it is in scope
// and this worker is the first to claim it. Losing the claim race is the
// expected, frequent case when pages link to the same target.
func (e *Engine) admit(base *url.URL, href string, depth int) {
	u := urlutil.Normalize(base, href)
	if u == nil {
		return
	}
	if !urlutil.InScope(u, e.allowed, e.blacklist) {
		e.logger.Debug("filtered link", "url", u.String())
		return
	}
	if !e.visited.TryClaim(u.String()) {
		return
	}
	e.logger.Debug("queueing link", "url", u.String(), "depth", depth)
	e.queue.Put(&types.Task{URL: u, Depth: depth})
}

func (e *Engine) appendResult(result types.Result) {
	e.mu.Lock()
	e.results = append(e.results, result)
	e.mu.Unlock()
}

func (e *Engine) report(start, end time.Time) *types.Report {
	e.mu.Lock()
	results := make([]types.Result, len(e.results))
	copy(results, e.results)
	e.mu.Unlock()

	return &types.Report{
		StartURL:            e.startURL.String(),
		MaxDepth:            e.cfg.Crawl.MaxDepth,
		AllowedDomains:      e.cfg.Crawl.AllowedDomains,
		BlacklistExtensions: e.cfg.EffectiveBlacklist(),
		Results:             results,
		Stats:               e.stats.snapshot(start, end),
	}
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelWarn
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning", "":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
