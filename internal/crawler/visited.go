package crawler

import "sync"

// Visited is the crawl-wide de-duplication ledger. TryClaim is the sole
// admission authority: the first claimant of a URL wins and every later call
// for the same URL reports false, so a URL is fetched at most once per run.
type Visited struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewVisited creates an empty visited set.
func NewVisited() *Visited {
	return &Visited{seen: make(map[string]struct{})}
}

// TryClaim atomically records url and reports whether this caller was the
// first claimant. Check and insert happen under one lock; there is no
// separate membership probe for callers to race on.
func (v *Visited) TryClaim(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[url]; ok {
		return false
	}
	v.seen[url] = struct{}{}
	return true
}

// Len reports how many URLs have been claimed.
func (v *Visited) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}
