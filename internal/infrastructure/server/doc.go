// Package server assembles the divpanel process: configuration, logging,
// metrics, tracing, the sandbox pool, the options store, the panel manager
// and the gin router with its HTTP and WebSocket routes.
//
// Startup restores persisted panels before provisioning, so definitions on
// disk never overwrite panels edited through the API.
package server
