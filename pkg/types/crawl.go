package types

import (
	"net/url"
	"time"
)

// Task is one unit of crawl work: a URL and the link depth it was discovered
// at. Tasks are immutable once enqueued and consumed exactly once by
// whichever worker dequeues them.
type Task struct {
	URL   *url.URL
	Depth int
}

// Page represents the fetched content of a single URL.
type Page struct {
	URL         *url.URL
	FinalURL    *url.URL
	Body        []byte
	ContentType string
	StatusCode  int
	FetchedAt   time.Time
}

// Result records the outcome of processing a single URL. Exactly one Result
// is produced per dequeued task: either Error is set, or StatusCode resolved
// with optional ContentSize and Title.
type Result struct {
	URL         string    `json:"url"`
	Depth       int       `json:"depth"`
	StatusCode  int       `json:"status_code,omitempty"`
	ContentSize int       `json:"content_size,omitempty"`
	Title       string    `json:"title,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Stats aggregates running counters for one crawl run.
type Stats struct {
	TotalURLsProcessed    int64          `json:"total_urls_processed"`
	TotalErrorsRequest    int64          `json:"total_errors_request"`
	TotalErrorsProcessing int64          `json:"total_errors_processing"`
	StatusCodeCounts      map[int]int    `json:"status_code_counts"`
	DomainCounts          map[string]int `json:"domain_counts"`
	StartTime             *time.Time     `json:"start_time,omitempty"`
	EndTime               *time.Time     `json:"end_time,omitempty"`
	DurationSeconds       float64        `json:"duration_seconds"`
}

// Report is the final immutable snapshot of a crawl run.
type Report struct {
	StartURL            string   `json:"start_url"`
	MaxDepth            int      `json:"max_depth"`
	AllowedDomains      []string `json:"allowed_domains,omitempty"`
	BlacklistExtensions []string `json:"blacklist_extensions"`
	Results             []Result `json:"results"`
	Stats               Stats    `json:"stats"`
}
