/*
Package tracing times requests and panel operations.

The HTTP middleware opens a span per request, joining the caller's trace
when X-Trace-ID and X-Span-ID are present and otherwise starting a new
"trace_<ULID>" trace. The request context carries both the span and the
tracer, so panel code opens child spans without holding a tracer:

	ctx, span := tracing.Start(ctx, "panel.render")
	span.Annotate("panel_id", id)
	defer func() { span.End(err) }()

Ended spans are queued and logged by one collector goroutine: failures at
Warn, everything else at Debug. A full queue drops spans and counts them.
*/
package tracing
