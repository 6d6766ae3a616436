// Package client fetches panel resources over HTTP.
//
// Built on go-resty/resty over a pooled go-retryablehttp transport, with:
//   - no retries: a failed load surfaces to the author immediately
//   - one circuit breaker per origin (fail fast on a dead host)
//   - optional client-side rate limiting
//   - charset detection and decoding to UTF-8
//   - payload sniffing: HTML pages and binary payloads are not scripts
//
// Example:
//
//	c := client.NewClient(client.DefaultConfig())
//	src, err := c.FetchText(ctx, "https://cdn.example.com/chart.js")
package client
