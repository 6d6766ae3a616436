package tracing

import (
	"github.com/gin-gonic/gin"
)

// HTTPMiddleware opens a span per request, joining the caller's trace when
// the propagation headers are present, and echoes the ids back
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := Continue(c.Request.Context(),
			TraceID(c.GetHeader(HeaderTraceID)),
			SpanID(c.GetHeader(HeaderSpanID)))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route)
		if panelID := c.Param("id"); panelID != "" {
			span.Annotate("panel_id", panelID)
		}

		c.Request = c.Request.WithContext(ctx)
		Inject(ctx, c.Writer.Header())

		c.Next()

		span.Status = c.Writer.Status()
		var err error
		if last := c.Errors.Last(); last != nil {
			err = last
		}
		span.End(err)
	}
}
