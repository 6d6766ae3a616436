package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records latency and sizes per matched route. Routes listed in
// skip, such as the scrape endpoint itself, are not recorded.
func Middleware(metrics *Metrics, skip ...string) gin.HandlerFunc {
	ignored := make(map[string]struct{}, len(skip))
	for _, route := range skip {
		ignored[route] = struct{}{}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ok := ignored[route]; ok {
			c.Next()
			return
		}
		if route == "" {
			route = "unmatched"
		}

		start := time.Now()
		c.Next()

		// Hijacked websocket upgrades report -1
		written := int64(c.Writer.Size())
		if written < 0 {
			written = 0
		}
		metrics.RecordHTTPRequest(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			max(c.Request.ContentLength, 0),
			written,
		)
	}
}

// Timer times one lifecycle operation
type Timer struct {
	metrics   *Metrics
	operation string
	began     time.Time
}

// NewTimer starts timing operation. Stopping a timer with nil metrics
// records nothing.
func NewTimer(metrics *Metrics, operation string) *Timer {
	return &Timer{metrics: metrics, operation: operation, began: time.Now()}
}

// Stop records the elapsed time under status
func (t *Timer) Stop(status string) {
	if t.metrics != nil {
		t.metrics.RecordOperation(t.operation, status, time.Since(t.began))
	}
}

// StopErr records "error" for a non-nil err and "success" otherwise
func (t *Timer) StopErr(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	t.Stop(status)
}
