package crawler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lgraba/crawler/pkg/types"
)

// statsTracker accumulates crawl counters across workers. Counters are
// atomic; the histograms share one small mutex so increments never lose
// updates without serialising the rest of the crawl.
type statsTracker struct {
	processed        atomic.Int64
	requestErrors    atomic.Int64
	processingErrors atomic.Int64

	mu          sync.Mutex
	statusCodes map[int]int
	domains     map[string]int
}

func newStatsTracker() *statsTracker {
	return &statsTracker{
		statusCodes: make(map[int]int),
		domains:     make(map[string]int),
	}
}

// markProcessed counts one dequeued URL and attributes it to its domain.
func (s *statsTracker) markProcessed(domain string) {
	s.processed.Add(1)
	if domain == "" {
		return
	}
	s.mu.Lock()
	s.domains[domain]++
	s.mu.Unlock()
}

func (s *statsTracker) recordStatus(code int) {
	s.mu.Lock()
	s.statusCodes[code]++
	s.mu.Unlock()
}

func (s *statsTracker) requestError() {
	s.requestErrors.Add(1)
}

func (s *statsTracker) processingError() {
	s.processingErrors.Add(1)
}

// snapshot copies the counters into an immutable Stats value.
func (s *statsTracker) snapshot(start, end time.Time) types.Stats {
	s.mu.Lock()
	statusCodes := make(map[int]int, len(s.statusCodes))
	for code, n := range s.statusCodes {
		statusCodes[code] = n
	}
	domains := make(map[string]int, len(s.domains))
	for domain, n := range s.domains {
		domains[domain] = n
	}
	s.mu.Unlock()

	stats := types.Stats{
		TotalURLsProcessed:    s.processed.Load(),
		TotalErrorsRequest:    s.requestErrors.Load(),
		TotalErrorsProcessing: s.processingErrors.Load(),
		StatusCodeCounts:      statusCodes,
		DomainCounts:          domains,
	}
	if !start.IsZero() {
		startUTC := start.UTC()
		stats.StartTime = &startUTC
		endUTC := end.UTC()
		stats.EndTime = &endUTC
		stats.DurationSeconds = end.Sub(start).Seconds()
	}
	return stats
}
