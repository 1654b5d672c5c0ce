package guard

import "sync"

// InFlight tracks URLs currently being processed so duplicate concurrent
// extraction requests can be rejected instead of doing the expensive
// rendering and enrichment work twice. It is constructed once per service
// instance and injected; there is no package-level state.
type InFlight struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewInFlight returns an empty guard.
func NewInFlight() *InFlight {
	return &InFlight{urls: make(map[string]struct{})}
}

// TryAcquire marks the URL as in flight. Returns false if it already is;
// the caller should reject the request with a retry-later signal rather
// than queue it.
func (g *InFlight) TryAcquire(url string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.urls[url]; exists {
		return false
	}
	g.urls[url] = struct{}{}
	return true
}

// Release removes the URL from the in-flight set. Safe to call for a URL
// that was never acquired.
func (g *InFlight) Release(url string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.urls, url)
}
