/*
Package http exposes panel sessions over a JSON HTTP API.

Every lifecycle operation of a panel has a route under /panels/:id. Content
operations take a types.ContentRequest and answer with the resulting
types.RenderResult. Failures map onto status codes:

	*transform.ParseError   422, with line and column
	panel.ErrNotFound       404
	panel.ErrExists         409
	panel.ErrMode, invalid  400
	anything else           500
*/
package http
