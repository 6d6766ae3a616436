package resilience

import (
	"sort"
	"sync"
)

// Origins keeps one breaker per origin under a shared policy, so a dead
// host does not block loads from the others
type Origins struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewOrigins creates an empty origin set
func NewOrigins(policy Policy) *Origins {
	return &Origins{
		policy:   policy,
		breakers: make(map[string]*Breaker),
	}
}

// For returns the breaker for origin, creating it on first use
func (o *Origins) For(origin string) *Breaker {
	o.mu.Lock()
	defer o.mu.Unlock()

	if b, ok := o.breakers[origin]; ok {
		return b
	}
	b := New(origin, o.policy)
	o.breakers[origin] = b
	return b
}

// Snapshot returns every known origin ordered by name
func (o *Origins) Snapshot() []Snapshot {
	o.mu.Lock()
	breakers := make([]*Breaker, 0, len(o.breakers))
	for _, b := range o.breakers {
		breakers = append(breakers, b)
	}
	o.mu.Unlock()

	out := make([]Snapshot, len(breakers))
	for i, b := range breakers {
		out[i] = b.Snapshot()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Origin < out[j].Origin })
	return out
}
