package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/divpanel/internal/infrastructure/monitoring"
)

// MetricsSummary derives rates from the raw counters
type MetricsSummary struct {
	TotalRequests  int64   `json:"total_requests"`
	ErrorRate      float64 `json:"error_rate"`
	MeanLatencyMs  float64 `json:"mean_latency_ms"`
	ParseErrorRate float64 `json:"parse_error_rate"` // parse errors per render
	OpenPanels     int64   `json:"open_panels"`
	StreamClients  int64   `json:"stream_clients"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	SandboxIdle    int     `json:"sandbox_idle"`
	SandboxInUse   int     `json:"sandbox_in_use"`
}

// MetricsJSON serves the counters and their summary for dashboards that do
// not scrape Prometheus
func (h *Handlers) MetricsJSON(c *gin.Context) {
	snap := h.metrics.GetSnapshot()
	summary := summarize(snap)
	if h.pool != nil {
		stats := h.pool.Stats()
		summary.SandboxIdle, summary.SandboxInUse = stats.Idle, stats.Live
	}
	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().UTC(),
		"metrics":   snap,
		"summary":   summary,
	})
}

func summarize(snap monitoring.MetricsSnapshot) MetricsSummary {
	return MetricsSummary{
		TotalRequests:  snap.TotalRequests,
		ErrorRate:      ratio(float64(snap.TotalErrors), snap.TotalRequests),
		MeanLatencyMs:  ratio(snap.TotalDuration*1000, snap.RequestCount),
		ParseErrorRate: ratio(float64(snap.ParseErrors), snap.Renders),
		OpenPanels:     snap.ActivePanels,
		StreamClients:  snap.ActiveConnections,
		UptimeSeconds:  snap.UptimeSeconds,
	}
}

func ratio(n float64, d int64) float64 {
	if d == 0 {
		return 0
	}
	return n / float64(d)
}
