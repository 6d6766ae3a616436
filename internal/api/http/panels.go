package http

import (
	"context"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/divpanel/internal/domain/panel"
	"github.com/GriffinCanCode/divpanel/internal/domain/transform"
	"github.com/GriffinCanCode/divpanel/internal/shared/types"
	"github.com/GriffinCanCode/divpanel/internal/shared/utils"
)

// CreatePanel opens a panel and commits its initial content
func (h *Handlers) CreatePanel(c *gin.Context) {
	var req types.CreatePanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := validateCreate(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.manager.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, nil)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"panel":  p.Info(),
		"result": p.Last(),
	})
}

// ListPanels lists all open panels
func (h *Handlers) ListPanels(c *gin.Context) {
	panels := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"panels": panels,
		"count":  len(panels),
	})
}

// GetPanel returns a panel's info and committed options
func (h *Handlers) GetPanel(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"panel":   p.Info(),
		"options": p.Options(),
	})
}

// DeletePanel closes a panel and removes its persisted options
func (h *Handlers) DeletePanel(c *gin.Context) {
	panelID := c.Param("id")
	if err := utils.ValidateID(panelID, "panel_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.manager.Delete(c.Request.Context(), panelID); err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"panel_id": panelID,
	})
}

// SaveContent commits content and re-renders with the current state
func (h *Handlers) SaveContent(c *gin.Context) {
	h.content(c, (*panel.Panel).Save)
}

// RunPanel commits content and renders it
func (h *Handlers) RunPanel(c *gin.Context) {
	h.content(c, (*panel.Panel).Run)
}

// ClearPanel commits content and shows the placeholder
func (h *Handlers) ClearPanel(c *gin.Context) {
	h.content(c, (*panel.Panel).Clear)
}

// EnterEditMode switches the panel into edit mode
func (h *Handlers) EnterEditMode(c *gin.Context) {
	h.lifecycle(c, (*panel.Panel).EnterEditMode)
}

// ExitEditMode switches the panel out of edit mode
func (h *Handlers) ExitEditMode(c *gin.Context) {
	h.lifecycle(c, (*panel.Panel).ExitEditMode)
}

// RenderPanel re-renders the committed options
func (h *Handlers) RenderPanel(c *gin.Context) {
	h.lifecycle(c, (*panel.Panel).Render)
}

// UpdateData hands a new data payload to the panel
func (h *Handlers) UpdateData(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, utils.MaxDataSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read data: " + err.Error()})
		return
	}
	if err := utils.ValidateJSON("data", raw, utils.MaxDataSize); err != nil {
		h.fail(c, err, nil)
		return
	}
	var data types.PanelData
	if err := sonic.Unmarshal(raw, &data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data: " + err.Error()})
		return
	}

	res, err := p.UpdateData(c.Request.Context(), &data)
	if err != nil {
		h.fail(c, err, p.Last())
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetDocument returns the panel's whole live document as HTML
func (h *Handlers) GetDocument(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(p.Document()))
}

type contentOp func(*panel.Panel, context.Context, string, types.Mode) (*types.RenderResult, error)

type lifecycleOp func(*panel.Panel, context.Context) (*types.RenderResult, error)

func (h *Handlers) content(c *gin.Context, op contentOp) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}

	var req types.ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := utils.ValidateContent(req.Content); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := op(p, c.Request.Context(), req.Content, req.Mode)
	if err != nil {
		var rendered *types.RenderResult
		if transform.IsParseError(err) {
			rendered = p.Last()
		}
		h.fail(c, err, rendered)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handlers) lifecycle(c *gin.Context, op lifecycleOp) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}

	res, err := op(p, c.Request.Context())
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

// lookup resolves the :id param, writing the error response on failure
func (h *Handlers) lookup(c *gin.Context) (*panel.Panel, bool) {
	panelID := c.Param("id")
	if err := utils.ValidateID(panelID, "panel_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	p, err := h.manager.Lookup(panelID)
	if err != nil {
		h.fail(c, err, nil)
		return nil, false
	}
	return p, true
}

func validateCreate(req types.CreatePanelRequest) error {
	if err := utils.ValidateID(req.ID, "id", false); err != nil {
		return err
	}
	if err := utils.ValidateTitle(req.Title); err != nil {
		return err
	}
	return utils.ValidateContent(req.Content)
}
