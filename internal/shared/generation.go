package shared

import "sync"

// Generations hands out monotonically increasing request generations per key
// so that a slow fetch finishing after a newer one can be recognised as stale
// and dropped instead of overwriting fresher results.
type Generations struct {
	mu     sync.Mutex
	latest map[string]uint64
}

// NewGenerations constructs an empty tracker.
func NewGenerations() *Generations {
	return &Generations{latest: make(map[string]uint64)}
}

// Observe issues the next generation for key. A non-zero gen is the
// generation the client believes it is on; at or below the current one it
// is stale and nothing is issued. The issued value is always current+1, so
// two requests never share a generation and a client cannot skip ahead.
func (g *Generations) Observe(key string, gen uint64) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	current := g.latest[key]
	if gen != 0 && gen <= current {
		return gen, false
	}
	next := current + 1
	g.latest[key] = next
	return next, true
}

// Current reports whether gen is still the newest generation for key.
func (g *Generations) Current(key string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latest[key] == gen
}

// Forget drops tracking for key on logout or session expiry.
func (g *Generations) Forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.latest, key)
}
