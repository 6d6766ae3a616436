// Package ws streams panel renders over a WebSocket.
//
// A client connects to /panels/:id/stream and receives the panel's last
// render, then every later one as {"type":"render"} messages. It drives the
// panel with save, run, clear, data and edit messages; ping answers pong.
// Operation failures come back as {"type":"error"}.
package ws
