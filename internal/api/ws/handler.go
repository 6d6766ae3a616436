package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/divpanel/internal/domain/panel"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/divpanel/internal/shared/types"
	"github.com/GriffinCanCode/divpanel/internal/shared/utils"
)

// Message types
const (
	TypeSave   = "save"
	TypeRun    = "run"
	TypeClear  = "clear"
	TypeData   = "data"
	TypeEdit   = "edit"
	TypePing   = "ping"
	TypePong   = "pong"
	TypeRender = "render"
	TypeError  = "error"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Handler manages panel stream connections
type Handler struct {
	manager *panel.Manager
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler. metrics may be nil.
func NewHandler(manager *panel.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		manager: manager,
		metrics: metrics,
		logger:  logger,
	}
}

// conn serializes writes to one websocket
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(msg types.WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

// HandleConnection handles the WebSocket upgrade and the message loop
func (h *Handler) HandleConnection(c *gin.Context) {
	panelID := c.Param("id")
	if err := utils.ValidateID(panelID, "panel_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.manager.Lookup(panelID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("panel_id", panelID), zap.Error(err))
		return
	}
	defer ws.Close()
	ws.SetReadLimit(utils.MaxMessageSize)

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	cn := &conn{ws: ws}
	renders, cancel := p.Subscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.forward(cn, renders)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	if last := p.Last(); last != nil {
		h.send(cn, renderMessage(*last))
	}

	ctx := c.Request.Context()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed", zap.String("panel_id", panelID), zap.Error(err))
			}
			break
		}
		var msg types.WSMessage
		if err := utils.ValidateJSON("message", raw, utils.MaxMessageSize); err != nil {
			h.send(cn, types.WSMessage{Type: TypeError, Message: err.Error()})
			continue
		}
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			h.send(cn, types.WSMessage{Type: TypeError, Message: "invalid message: " + err.Error()})
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		if err := h.dispatch(ctx, cn, p, msg); err != nil {
			h.send(cn, types.WSMessage{Type: TypeError, Message: err.Error()})
		}
	}
}

// dispatch runs one client message against p. Renders reach the client
// through the subscription, so only pongs are written here.
func (h *Handler) dispatch(ctx context.Context, cn *conn, p *panel.Panel, msg types.WSMessage) error {
	var err error
	switch msg.Type {
	case TypeSave:
		_, err = p.Save(ctx, msg.Content, msg.Mode)
	case TypeRun:
		_, err = p.Run(ctx, msg.Content, msg.Mode)
	case TypeClear:
		_, err = p.Clear(ctx, msg.Content, msg.Mode)
	case TypeData:
		_, err = p.UpdateData(ctx, msg.Data)
	case TypeEdit:
		if msg.EditMode == nil {
			return errors.New("edit message requires edit_mode")
		}
		if *msg.EditMode {
			_, err = p.EnterEditMode(ctx)
		} else {
			_, err = p.ExitEditMode(ctx)
		}
	case TypePing:
		h.send(cn, types.WSMessage{Type: TypePong})
	default:
		return errors.New("unknown message type")
	}
	return err
}

// forward pushes every published render until the subscription closes
func (h *Handler) forward(cn *conn, renders <-chan types.RenderResult) {
	for res := range renders {
		h.send(cn, renderMessage(res))
	}
}

func (h *Handler) send(cn *conn, msg types.WSMessage) {
	if err := cn.write(msg); err != nil {
		h.logger.Debug("websocket write failed", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	if h.metrics != nil {
		h.metrics.RecordWSMessage("out", msg.Type)
	}
}

func renderMessage(res types.RenderResult) types.WSMessage {
	return types.WSMessage{Type: TypeRender, HTML: res.HTML, Mount: res.Mount}
}
