// Package types provides shared data structures for the div panel runtime.
//
// Core Types:
//   - PanelOptions: persisted author source and its derived transform output
//   - PanelState: render/clear command plus edit mode
//   - PanelData: data frames pushed to hooks and components
//
// Request Types:
//   - CreatePanelRequest, ContentRequest, DataRequest: HTTP payloads
//   - WSMessage: WebSocket control and render messages
package types
