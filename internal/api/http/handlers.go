package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/divpanel/internal/domain/panel"
	"github.com/GriffinCanCode/divpanel/internal/domain/transform"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/divpanel/internal/sandbox"
	"github.com/GriffinCanCode/divpanel/internal/shared/types"
	"github.com/GriffinCanCode/divpanel/internal/shared/utils"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	manager *panel.Manager
	pool    *sandbox.Pool
	metrics *monitoring.Metrics
	origins func() []resilience.Snapshot
	logger  *zap.Logger
	started time.Time
}

// NewHandlers creates a new handler set. metrics and pool may be nil.
func NewHandlers(manager *panel.Manager, pool *sandbox.Pool, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		manager: manager,
		pool:    pool,
		metrics: metrics,
		logger:  logger,
		started: time.Now(),
	}
}

// WithOrigins reports fetch origin breakers in the health check
func (h *Handlers) WithOrigins(origins func() []resilience.Snapshot) *Handlers {
	h.origins = origins
	return h
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.POST("/transform", h.Transform)

	panels := r.Group("/panels")
	panels.POST("", h.CreatePanel)
	panels.GET("", h.ListPanels)
	panels.GET("/:id", h.GetPanel)
	panels.DELETE("/:id", h.DeletePanel)
	panels.PUT("/:id/content", h.SaveContent)
	panels.POST("/:id/run", h.RunPanel)
	panels.POST("/:id/clear", h.ClearPanel)
	panels.POST("/:id/edit", h.EnterEditMode)
	panels.DELETE("/:id/edit", h.ExitEditMode)
	panels.POST("/:id/data", h.UpdateData)
	panels.GET("/:id/render", h.RenderPanel)
	panels.GET("/:id/document", h.GetDocument)

	if h.metrics != nil {
		r.GET("/metrics/json", h.MetricsJSON)
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "divpanel",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":         "healthy",
		"panels":         h.manager.Count(),
		"uptime_seconds": time.Since(h.started).Seconds(),
	}
	if h.pool != nil {
		body["sandbox_pool"] = h.pool.Stats()
	}
	if h.origins != nil {
		body["origins"] = h.origins()
	}
	c.JSON(http.StatusOK, body)
}

// Transform runs the source transform pipeline without a panel
func (h *Handlers) Transform(c *gin.Context) {
	var req types.TransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	res, err := h.manager.Pipeline().Transform(req.Source)
	if err != nil {
		h.fail(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, types.TransformResponse{
		TransformedCode:    res.TransformedCode,
		ExportedSymbolName: res.ExportedSymbolName,
	})
}

// fail writes err with its mapped status. result, when set, is the render
// that still happened (a parse error renders its error markup).
func (h *Handlers) fail(c *gin.Context, err error, result *types.RenderResult) {
	status := statusOf(err)
	body := gin.H{"error": err.Error()}

	var parseErr *transform.ParseError
	if errors.As(err, &parseErr) {
		body["line"] = parseErr.Line
		body["column"] = parseErr.Column
		if result != nil {
			body["result"] = result
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("panel_id", c.Param("id")),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, body)
}

func statusOf(err error) int {
	switch {
	case transform.IsParseError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, panel.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, panel.ErrExists):
		return http.StatusConflict
	case errors.Is(err, panel.ErrMode), utils.IsInvalid(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
