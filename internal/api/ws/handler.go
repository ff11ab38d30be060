package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/modhost/internal/diagnostics"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/sandbox"
)

const (
	writeWait    = 2 * time.Second
	pingInterval = 20 * time.Second
)

// Message is one frame sent to or received from a viewer
type Message struct {
	Type      string            `json:"type"`
	Message   string            `json:"message,omitempty"`
	Entry     *sandbox.LogEntry `json:"entry,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Handler streams page console output to diagnostic viewers
type Handler struct {
	hub      *diagnostics.Hub
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. checkOrigin nil accepts any
// origin; the router's CORS policy applies before the upgrade.
func NewHandler(hub *diagnostics.Hub, logger *zap.Logger, metrics *monitoring.Metrics, checkOrigin func(*http.Request) bool) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		hub:      hub,
		logger:   logger,
		metrics:  metrics,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

// conn serializes writes; gorilla allows one concurrent writer
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(msg Message) error {
	msg.Timestamp = time.Now().Unix()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

func (c *conn) control(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(kind, data, time.Now().Add(writeWait))
}

// HandleConnection attaches a viewer. The request is refused with 409 while
// the diagnostic view is closed; closing the view ends the stream with a
// normal close frame.
func (h *Handler) HandleConnection(c *gin.Context) {
	sub, ok := h.hub.Subscribe(diagnostics.DefaultBuffer)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "diagnostic view is closed"})
		return
	}
	defer sub.Close()

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	log := h.logger.With(zap.String("viewer", sub.ID.String()))
	log.Info("diagnostic viewer attached", zap.String("remote", c.ClientIP()))
	defer log.Info("diagnostic viewer detached")

	cn := &conn{ws: ws}
	if err := cn.send(Message{Type: "system", Message: "diagnostics attached"}); err != nil {
		return
	}

	done := make(chan struct{})
	go h.read(cn, done, log)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if err := cn.control(websocket.PingMessage, nil); err != nil {
				return
			}
		case e, ok := <-sub.Entries:
			if !ok {
				cn.control(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "diagnostic view closed"))
				return
			}
			if err := cn.send(Message{Type: "console", Entry: &e}); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

// read handles viewer frames until the connection drops
func (h *Handler) read(cn *conn, done chan<- struct{}, log *zap.Logger) {
	defer close(done)

	for {
		var msg Message
		if err := cn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "ping":
			cn.send(Message{Type: "pong"})
		default:
			cn.send(Message{Type: "error", Message: "unknown message type"})
		}
	}
}
