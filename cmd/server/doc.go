// Command server runs the div panel server.
//
// Each panel holds an HTML fragment or a JSX component source. The server
// classifies it, loads its scripts and stylesheets, runs it inside a
// sandboxed script runtime against the panel's document and serves the
// rendered markup over HTTP, with live renders pushed on a websocket.
//
// Settings come from the environment (see package config). Flags override
// them:
//
//	server -port 8000 -store ./divpanel.db -provision ./panels
//	server -dev
//
// SIGINT or SIGTERM drains requests and closes every panel within
// SHUTDOWN_TIMEOUT.
package main
