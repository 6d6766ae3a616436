// Package monitoring exposes Prometheus collectors for the panel server.
//
// Metrics is the single owner of every collector: HTTP latency and sizes
// per route, open and total panels, renders by mode and mount target,
// commits and parse errors, lifecycle operation latency, resource loads by
// kind and outcome, hook runs, websocket traffic, origin breaker
// transitions and uptime.
//
// Wire it into gin and time operations with a Timer:
//
//	metrics := monitoring.NewMetrics()
//	router.Use(monitoring.Middleware(metrics, "/metrics"))
//
//	timer := monitoring.NewTimer(metrics, "run")
//	err := p.Run(ctx, content)
//	timer.StopErr(err)
//
// NewMetricsWith registers on a caller supplied registry so tests can build
// as many as they like.
package monitoring
