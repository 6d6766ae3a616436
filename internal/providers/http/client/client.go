package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/divpanel/internal/infrastructure/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// Config configures the fetch client
type Config struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 for unlimited
	UserAgent string
	MaxBytes  int
	BaseURL   string // resolves relative resource urls

	// OnBreakerChange observes origin circuit transitions
	OnBreakerChange func(origin string, from, to resilience.State)
}

// DefaultConfig returns the client defaults
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: "divpanel-loader/1.0",
		MaxBytes:  4 * 1024 * 1024,
	}
}

// Client wraps resty with rate limiting and per-origin circuit breakers
type Client struct {
	Resty    *resty.Client
	Limiter  *rate.Limiter
	Breakers *resilience.Origins
	maxBytes int
	baseURL  string
	mu       sync.RWMutex
}

// NewClient creates a fetch client
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}

	// Pooled transport only; loads are never retried
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/javascript, text/javascript, text/css, */*;q=0.5")
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	policy := resilience.DefaultPolicy()
	policy.OnTransition = cfg.OnBreakerChange
	breakers := resilience.NewOrigins(policy)

	c := &Client{
		Resty:    restyClient,
		Breakers: breakers,
		maxBytes: cfg.MaxBytes,
		baseURL:  cfg.BaseURL,
	}
	c.SetRateLimit(cfg.RateLimit)
	return c
}

// SetTimeout configures the request timeout
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resty.SetTimeout(d)
}

// SetRateLimit configures rate limiting in requests per second
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// BreakerState returns the breaker state for host
func (c *Client) BreakerState(host string) resilience.State {
	return c.Breakers.For(host).State()
}

// Origins snapshots the breaker of every origin contacted so far
func (c *Client) Origins() []resilience.Snapshot {
	return c.Breakers.Snapshot()
}

// Request creates a request for host, failing fast when its breaker is
// open and waiting on the rate limiter otherwise
func (c *Client) Request(ctx context.Context, host string) (*resty.Request, error) {
	if c.Breakers.For(host).State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}

	c.mu.RLock()
	limiter := c.Limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Resty.R().SetContext(ctx), nil
}
