package sandbox

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// PoolStats reports runtime usage
type PoolStats struct {
	Idle    int  `json:"idle"`
	Live    int  `json:"live"`
	Created int  `json:"created"`
	Limit   int  `json:"limit,omitempty"`
	Closed  bool `json:"closed"`
}

// PoolOption configures a Pool
type PoolOption func(*Pool)

// MaxRuntimes caps the runtimes handed out at once. Acquire waits for a
// release once the cap is reached. Zero means no cap.
func MaxRuntimes(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.limit = n
			p.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// Pool recycles runtimes between panel sessions. Up to idle reset
// runtimes are kept warm; beyond that released runtimes are closed.
type Pool struct {
	config Config
	warm   chan *Runtime
	limit  int
	slots  *semaphore.Weighted // nil without a cap

	mu      sync.Mutex
	closed  bool
	live    int
	created int
}

// NewPool creates a pool and warms idle runtimes concurrently
func NewPool(config Config, idle int, opts ...PoolOption) (*Pool, error) {
	if idle <= 0 {
		idle = 4
	}
	p := &Pool{
		config: config,
		warm:   make(chan *Runtime, idle),
	}
	for _, opt := range opts {
		opt(p)
	}

	var g errgroup.Group
	for i := 0; i < idle; i++ {
		g.Go(func() error {
			rt, err := New(config)
			if err != nil {
				return err
			}
			p.warm <- rt
			return nil
		})
	}
	err := g.Wait()

	p.mu.Lock()
	p.created = len(p.warm)
	p.mu.Unlock()
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// Acquire hands out a warm runtime, or a new one when none is idle
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.slots != nil {
		if err := p.slots.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	rt, err := p.take()
	if err != nil && p.slots != nil {
		p.slots.Release(1)
	}
	return rt, err
}

func (p *Pool) take() (*Runtime, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	select {
	case rt := <-p.warm:
		p.live++
		p.mu.Unlock()
		return rt, nil
	default:
	}
	p.live++
	p.created++
	p.mu.Unlock()

	// Built outside the lock; goja setup is the slow part
	rt, err := New(p.config)
	if err != nil {
		p.mu.Lock()
		p.live--
		p.created--
		p.mu.Unlock()
		return nil, err
	}
	return rt, nil
}

// Release resets rt and keeps it warm if there is room
func (p *Pool) Release(rt *Runtime) error {
	if rt == nil {
		return nil
	}
	if p.slots != nil {
		defer p.slots.Release(1)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.live--

	if p.closed {
		return rt.Close()
	}
	if err := rt.Reset(); err != nil {
		return errors.Join(err, rt.Close())
	}
	select {
	case p.warm <- rt:
		return nil
	default:
		return rt.Close()
	}
}

// Close closes the idle runtimes. Runtimes still in use are closed as
// they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.warm)

	var errs []error
	for rt := range p.warm {
		errs = append(errs, rt.Close())
	}
	return errors.Join(errs...)
}

// Stats returns current usage
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := 0
	if !p.closed {
		idle = len(p.warm)
	}
	return PoolStats{
		Idle:    idle,
		Live:    p.live,
		Created: p.created,
		Limit:   p.limit,
		Closed:  p.closed,
	}
}
