package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned without contacting an origin that is cut off
	ErrCircuitOpen = errors.New("origin circuit is open")
	// ErrProbeInFlight is returned while a recovering origin has all its
	// probe requests outstanding
	ErrProbeInFlight = errors.New("origin probe in flight")
)

// State of an origin circuit
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON snapshots
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Policy decides when an origin is cut off and when it is probed again
type Policy struct {
	// Threshold is the run of failures that opens the circuit
	Threshold uint32
	// Probes is how many requests a half-open circuit admits, and how many
	// must succeed to close it
	Probes uint32
	// Window clears closed-state counts. Zero keeps them forever.
	Window time.Duration
	// Cooldown is how long an open circuit rejects requests
	Cooldown time.Duration
	// Failure reports whether err counts against the origin. Nil counts
	// every non-nil error.
	Failure func(err error) bool
	// OnTransition observes state changes. It runs with the breaker locked.
	OnTransition func(origin string, from, to State)
}

// DefaultPolicy opens after five failed loads and probes again after 30s
func DefaultPolicy() Policy {
	return Policy{
		Threshold: 5,
		Probes:    1,
		Window:    time.Minute,
		Cooldown:  30 * time.Second,
		Failure:   OriginFailure,
	}
}

// OriginFailure counts every error except caller cancellation, so a panel
// closed mid-load never cuts off the origin
func OriginFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Threshold == 0 {
		p.Threshold = def.Threshold
	}
	if p.Probes == 0 {
		p.Probes = def.Probes
	}
	if p.Cooldown <= 0 {
		p.Cooldown = def.Cooldown
	}
	if p.Failure == nil {
		p.Failure = func(err error) bool { return err != nil }
	}
	return p
}

// Counts are the outcomes recorded in the current state
type Counts struct {
	Requests             uint32 `json:"requests"`
	Successes            uint32 `json:"successes"`
	Failures             uint32 `json:"failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

// Snapshot is a point-in-time view of one origin circuit
type Snapshot struct {
	Origin string    `json:"origin"`
	State  State     `json:"state"`
	Counts Counts    `json:"counts"`
	Until  time.Time `json:"until"`
}

// Breaker guards requests to a single origin
type Breaker struct {
	origin string
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	epoch    uint64    // bumped on every transition and window reset
	deadline time.Time // window end when closed, cooldown end when open
}

// New creates a closed breaker for origin
func New(origin string, policy Policy) *Breaker {
	b := &Breaker{
		origin: origin,
		policy: policy.withDefaults(),
		now:    time.Now,
	}
	b.deadline = b.windowEnd(b.now())
	return b
}

// Origin returns the guarded origin
func (b *Breaker) Origin() string { return b.origin }

// State returns the current state, applying any elapsed cooldown or window
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(b.now())
	return b.state
}

// Snapshot returns the current state and counts
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(b.now())

	s := Snapshot{Origin: b.origin, State: b.state, Counts: b.counts}
	if b.state == StateOpen {
		s.Until = b.deadline
	}
	return s
}

// Allow admits one request. The returned done func must be called exactly
// once with the request's outcome.
func (b *Breaker) Allow() (done func(err error), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.now())
	switch b.state {
	case StateOpen:
		return nil, ErrCircuitOpen
	case StateHalfOpen:
		if b.counts.Requests >= b.policy.Probes {
			return nil, ErrProbeInFlight
		}
	}
	b.counts.Requests++

	epoch := b.epoch
	var once sync.Once
	return func(err error) {
		once.Do(func() { b.settle(epoch, !b.policy.Failure(err)) })
	}, nil
}

// Do runs fn through b. A panic in fn counts as a failure and is re-raised.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	done, err := b.Allow()
	if err != nil {
		var zero T
		return zero, err
	}

	settled := false
	defer func() {
		if !settled {
			done(errors.New("panic"))
		}
	}()

	out, err := fn()
	settled = true
	done(err)
	return out, err
}

func (b *Breaker) settle(epoch uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.advance(now)
	// Started before the last transition
	if epoch != b.epoch {
		return
	}

	if ok {
		b.counts.Successes++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.policy.Probes {
			b.enter(StateClosed, now)
		}
		return
	}

	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	if b.state == StateHalfOpen || b.counts.ConsecutiveFailures >= b.policy.Threshold {
		b.enter(StateOpen, now)
	}
}

// advance applies time-based changes. Caller holds b.mu.
func (b *Breaker) advance(now time.Time) {
	if b.deadline.IsZero() || now.Before(b.deadline) {
		return
	}
	switch b.state {
	case StateClosed:
		b.counts = Counts{}
		b.epoch++
		b.deadline = b.windowEnd(now)
	case StateOpen:
		b.enter(StateHalfOpen, now)
	}
}

// enter switches to state. Caller holds b.mu.
func (b *Breaker) enter(state State, now time.Time) {
	if b.state == state {
		return
	}

	from := b.state
	b.state = state
	b.counts = Counts{}
	b.epoch++

	switch state {
	case StateClosed:
		b.deadline = b.windowEnd(now)
	case StateOpen:
		b.deadline = now.Add(b.policy.Cooldown)
	case StateHalfOpen:
		b.deadline = time.Time{}
	}

	if b.policy.OnTransition != nil {
		b.policy.OnTransition(b.origin, from, state)
	}
}

func (b *Breaker) windowEnd(now time.Time) time.Time {
	if b.policy.Window <= 0 {
		return time.Time{}
	}
	return now.Add(b.policy.Window)
}
