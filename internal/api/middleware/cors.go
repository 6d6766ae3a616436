package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/divpanel/internal/infrastructure/config"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/tracing"
)

// CORS lets browser editors on the configured origins drive the panel API.
// A "*" origin allows any page but never sends credentials.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	origins := cfg.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	anyOrigin := slices.Contains(origins, "*")

	c := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", tracing.HeaderTraceID, tracing.HeaderSpanID},
		ExposeHeaders:    []string{tracing.HeaderTraceID, tracing.HeaderSpanID},
		AllowCredentials: !anyOrigin,
		AllowWebSockets:  true,
		MaxAge:           cfg.MaxAge,
	}
	if anyOrigin {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 12 * time.Hour
	}
	return cors.New(c)
}
