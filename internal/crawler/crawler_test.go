package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lgraba/crawler/internal/config"
	"github.com/lgraba/crawler/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(startURL string) config.Config {
	cfg := config.Default()
	cfg.Crawl.StartURL = startURL
	cfg.Crawl.MaxDepth = 1
	cfg.Crawl.Concurrency = 4
	// Tests opt in to extension filtering explicitly.
	cfg.Crawl.BlacklistExtensions = []string{}
	cfg.Fetch.Timeout = config.DurationFrom(5 * time.Second)
	return cfg
}

func runCrawl(t *testing.T, cfg config.Config) *types.Report {
	t.Helper()
	engine, err := NewEngine(cfg, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

func htmlHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}
}

func resultByURL(report *types.Report, url string) *types.Result {
	for i := range report.Results {
		if report.Results[i].URL == url {
			return &report.Results[i]
		}
	}
	return nil
}

func TestCrawlDepthZeroFetchesOnlyStartURL(t *testing.T) {
	var requests atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		htmlHandler(`<html><head><title> Home </title></head>
			<body><a href="/a">a</a><a href="/b">b</a></body></html>`)(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Crawl.MaxDepth = 0
	report := runCrawl(t, cfg)

	if len(report.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(report.Results))
	}
	if requests.Load() != 1 {
		t.Errorf("server saw %d requests, want 1", requests.Load())
	}
	result := report.Results[0]
	if result.URL != srv.URL {
		t.Errorf("result URL = %s, want %s", result.URL, srv.URL)
	}
	if result.Depth != 0 {
		t.Errorf("result depth = %d, want 0", result.Depth)
	}
	if result.Title != "Home" {
		t.Errorf("title = %q, want trimmed %q", result.Title, "Home")
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", result.StatusCode)
	}
	if result.Error != "" {
		t.Errorf("unexpected error %q", result.Error)
	}
}

func TestCrawlFollowsLinksAndDeduplicates(t *testing.T) {
	mux := http.NewServeMux()
	var home, pageA, pageB atomic.Int64
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		home.Add(1)
		htmlHandler(`<html><head><title>Home</title></head>
			<body><a href="/a">a</a><a href="/b">b</a><a href="/a">a again</a></body></html>`)(w, r)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		pageA.Add(1)
		htmlHandler(`<html><head><title>A</title></head>
			<body><a href="/">home</a><a href="/b">b</a></body></html>`)(w, r)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		pageB.Add(1)
		htmlHandler(`<html><head><title>B</title></head>
			<body><a href="/a">a</a></body></html>`)(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Seed with the trailing slash so "/" links resolve to the same string.
	startURL := srv.URL + "/"
	cfg := testConfig(startURL)
	cfg.Crawl.MaxDepth = 3
	report := runCrawl(t, cfg)

	if len(report.Results) != 3 {
		t.Fatalf("results = %d, want 3 (got %+v)", len(report.Results), report.Results)
	}
	seen := make(map[string]int)
	for _, r := range report.Results {
		seen[r.URL]++
		if r.Depth > cfg.Crawl.MaxDepth {
			t.Errorf("result %s at depth %d exceeds max depth", r.URL, r.Depth)
		}
		if r.Depth == 0 && r.URL != startURL {
			t.Errorf("depth 0 used for non-start URL %s", r.URL)
		}
	}
	for url, n := range seen {
		if n != 1 {
			t.Errorf("URL %s produced %d results, want exactly 1", url, n)
		}
	}
	for name, counter := range map[string]*atomic.Int64{"/": &home, "/a": &pageA, "/b": &pageB} {
		if counter.Load() != 1 {
			t.Errorf("page %s fetched %d times, want once", name, counter.Load())
		}
	}

	if report.Stats.TotalURLsProcessed != 3 {
		t.Errorf("processed = %d, want 3", report.Stats.TotalURLsProcessed)
	}
	if report.Stats.StatusCodeCounts[http.StatusOK] != 3 {
		t.Errorf("status 200 count = %d, want 3", report.Stats.StatusCodeCounts[http.StatusOK])
	}
}

func TestCrawlSkipsNonNavigableSchemes(t *testing.T) {
	srv := httptest.NewServer(htmlHandler(`<html><body>
		<a href="mailto:a@b.com">mail</a>
		<a href="javascript:void(0)">js</a>
	</body></html>`))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Crawl.MaxDepth = 3
	report := runCrawl(t, cfg)

	if len(report.Results) != 1 {
		t.Fatalf("results = %d, want 1 (mailto/javascript must not be enqueued)", len(report.Results))
	}
}

func TestCrawlBlacklistFiltersBeforeEnqueue(t *testing.T) {
	mux := http.NewServeMux()
	var picRequested atomic.Bool
	mux.HandleFunc("/", htmlHandler(`<html><body>
		<a href="/pic.jpg">pic</a><a href="/page.html">page</a>
	</body></html>`))
	mux.HandleFunc("/page.html", htmlHandler(`<html><head><title>Page</title></head><body></body></html>`))
	mux.HandleFunc("/pic.jpg", func(w http.ResponseWriter, r *http.Request) {
		picRequested.Store(true)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Crawl.BlacklistExtensions = []string{".jpg"}
	report := runCrawl(t, cfg)

	if len(report.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(report.Results))
	}
	if resultByURL(report, srv.URL+"/pic.jpg") != nil {
		t.Error("blacklisted URL produced a result")
	}
	if picRequested.Load() {
		t.Error("blacklisted URL was fetched")
	}
}

func TestCrawlOutOfScopeStartURLYieldsEmptyReport(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Crawl.AllowedDomains = []string{"other.example"}
	report := runCrawl(t, cfg)

	if len(report.Results) != 0 {
		t.Errorf("results = %d, want 0", len(report.Results))
	}
	if report.Stats.TotalURLsProcessed != 0 {
		t.Errorf("processed = %d, want 0", report.Stats.TotalURLsProcessed)
	}
	if requests.Load() != 0 {
		t.Errorf("server saw %d requests, want 0", requests.Load())
	}
}

func TestCrawlRecordsHTTPErrorStatus(t *testing.T) {
	mux := http.NewServeMux()
	var neverFetched atomic.Bool
	mux.HandleFunc("/", htmlHandler(`<html><body><a href="/missing">gone</a></body></html>`))
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `<html><body><a href="/never">never</a></body></html>`)
	})
	mux.HandleFunc("/never", func(w http.ResponseWriter, r *http.Request) {
		neverFetched.Store(true)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Crawl.MaxDepth = 3
	report := runCrawl(t, cfg)

	missing := resultByURL(report, srv.URL+"/missing")
	if missing == nil {
		t.Fatal("no result recorded for the 404 page")
	}
	if missing.Error != "HTTP Status 404" {
		t.Errorf("error = %q, want %q", missing.Error, "HTTP Status 404")
	}
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", missing.StatusCode)
	}
	if neverFetched.Load() {
		t.Error("links must not be extracted from error responses")
	}
	if report.Stats.StatusCodeCounts[http.StatusNotFound] != 1 {
		t.Errorf("404 count = %d, want 1", report.Stats.StatusCodeCounts[http.StatusNotFound])
	}
	if report.Stats.TotalErrorsRequest != 0 {
		t.Errorf("request errors = %d, want 0", report.Stats.TotalErrorsRequest)
	}
}

func TestCrawlRecordsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL
	srv.Close()

	cfg := testConfig(deadURL)
	report := runCrawl(t, cfg)

	if len(report.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(report.Results))
	}
	result := report.Results[0]
	if !strings.HasPrefix(result.Error, "Request Error:") {
		t.Errorf("error = %q, want Request Error classification", result.Error)
	}
	if result.StatusCode != 0 {
		t.Errorf("status = %d, want unset", result.StatusCode)
	}
	if report.Stats.TotalErrorsRequest != 1 {
		t.Errorf("request errors = %d, want 1", report.Stats.TotalErrorsRequest)
	}
	if len(report.Stats.StatusCodeCounts) != 0 {
		t.Errorf("status histogram = %v, want empty", report.Stats.StatusCodeCounts)
	}
}

func TestCrawlSkipsExtractionForNonHTML(t *testing.T) {
	mux := http.NewServeMux()
	var followed atomic.Bool
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"link": "<a href=\"/followed\">x</a>"}`)
	})
	mux.HandleFunc("/followed", func(w http.ResponseWriter, r *http.Request) {
		followed.Store(true)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	report := runCrawl(t, cfg)

	if len(report.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(report.Results))
	}
	result := report.Results[0]
	if result.Error != "" {
		t.Errorf("non-HTML content is not an error, got %q", result.Error)
	}
	if result.Title != "" {
		t.Errorf("title = %q, want empty for non-HTML", result.Title)
	}
	if followed.Load() {
		t.Error("links must not be extracted from non-HTML content")
	}
}

func TestCrawlResolvesLinksAgainstFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	var subFetched atomic.Bool
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dir/page", http.StatusFound)
	})
	mux.HandleFunc("/dir/page", htmlHandler(`<html><body><a href="sub">sub</a></body></html>`))
	mux.HandleFunc("/dir/sub", func(w http.ResponseWriter, r *http.Request) {
		subFetched.Store(true)
		htmlHandler(`<html><body></body></html>`)(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL + "/start")
	report := runCrawl(t, cfg)

	if !subFetched.Load() {
		t.Error("relative link did not resolve against the post-redirect URL")
	}
	start := resultByURL(report, srv.URL+"/start")
	if start == nil {
		t.Fatal("no result for the start URL")
	}
	if start.StatusCode != http.StatusOK {
		t.Errorf("status after redirect = %d, want 200", start.StatusCode)
	}
}

// The semaphore caps simultaneous in-flight requests at the configured
// concurrency regardless of how much work is queued.
func TestCrawlConcurrencyLimit(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64
	mux := http.NewServeMux()
	links := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		links = append(links, fmt.Sprintf(`<a href="/page-%d">p</a>`, i))
	}
	mux.HandleFunc("/", htmlHandler(`<html><body>`+strings.Join(links, "")+`</body></html>`))
	for i := 0; i < 8; i++ {
		mux.HandleFunc(fmt.Sprintf("/page-%d", i), func(w http.ResponseWriter, r *http.Request) {
			current := inFlight.Add(1)
			for {
				observed := maxInFlight.Load()
				if current <= observed || maxInFlight.CompareAndSwap(observed, current) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			inFlight.Add(-1)
			htmlHandler(`<html><body></body></html>`)(w, r)
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Crawl.Concurrency = 1
	report := runCrawl(t, cfg)

	if got := maxInFlight.Load(); got > 1 {
		t.Errorf("max in-flight requests = %d, want at most 1", got)
	}
	if len(report.Results) != 9 {
		t.Errorf("results = %d, want 9", len(report.Results))
	}
}

func TestCrawlStatusHistogramInvariant(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", htmlHandler(`<html><body>
		<a href="/missing">m</a><a href="/page">p</a>
	</body></html>`))
	mux.HandleFunc("/page", htmlHandler(`<html><body></body></html>`))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	report := runCrawl(t, cfg)

	var statusTotal int64
	for _, n := range report.Stats.StatusCodeCounts {
		statusTotal += int64(n)
	}
	if statusTotal+report.Stats.TotalErrorsRequest != report.Stats.TotalURLsProcessed {
		t.Errorf("status sum %d + request errors %d != processed %d",
			statusTotal, report.Stats.TotalErrorsRequest, report.Stats.TotalURLsProcessed)
	}
}

func TestNewEngineValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"relative start url", func(c *config.Config) { c.Crawl.StartURL = "not-a-url" }},
		{"empty start url", func(c *config.Config) { c.Crawl.StartURL = "" }},
		{"negative depth", func(c *config.Config) { c.Crawl.MaxDepth = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig("http://example.com")
			tc.mutate(&cfg)
			if _, err := NewEngine(cfg, WithLogger(discardLogger())); err == nil {
				t.Fatal("expected construction error, got nil")
			}
		})
	}
}

func TestReportCarriesConfiguration(t *testing.T) {
	srv := httptest.NewServer(htmlHandler(`<html><body></body></html>`))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Crawl.MaxDepth = 2
	cfg.Crawl.BlacklistExtensions = []string{".png", ".jpg"}
	report := runCrawl(t, cfg)

	if report.StartURL != srv.URL {
		t.Errorf("report start URL = %s, want %s", report.StartURL, srv.URL)
	}
	if report.MaxDepth != 2 {
		t.Errorf("report max depth = %d, want 2", report.MaxDepth)
	}
	want := []string{".jpg", ".png"}
	if len(report.BlacklistExtensions) != 2 ||
		report.BlacklistExtensions[0] != want[0] || report.BlacklistExtensions[1] != want[1] {
		t.Errorf("report blacklist = %v, want %v", report.BlacklistExtensions, want)
	}
	if report.Stats.StartTime == nil || report.Stats.EndTime == nil {
		t.Fatal("report stats missing run timing")
	}
	if report.Stats.DurationSeconds < 0 {
		t.Errorf("duration = %f, want >= 0", report.Stats.DurationSeconds)
	}
}
