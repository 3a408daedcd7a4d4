package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/san-kum/sentinel-core/server/models"
	"go.uber.org/zap"
)

type ServerMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

type eventClient struct {
	id   string
	conn *websocket.Conn
	send chan ServerMessage
}

// EventHub pushes confirmed-anomaly and object-report events to websocket
// subscribers. Each client gets its own send queue; slow clients drop
// events rather than block the frame path.
type EventHub struct {
	clients map[string]*eventClient
	mutex   sync.Mutex

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewEventHub(logger *zap.Logger) *EventHub {
	return &EventHub{
		clients: make(map[string]*eventClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// BroadcastAnomaly publishes a confirmed anomaly to all subscribers.
func (h *EventHub) BroadcastAnomaly(cameraID string, result *models.FrameAnalysisResult) {
	h.broadcast(ServerMessage{
		Type: "anomaly_confirmed",
		Data: gin.H{
			"camera_id":   cameraID,
			"observation": result,
		},
		Timestamp: time.Now().Unix(),
	})
}

// BroadcastObjects publishes the per-frame object report.
func (h *EventHub) BroadcastObjects(cameraID string, result *models.FrameAnalysisResult) {
	h.broadcast(ServerMessage{
		Type: "object_report",
		Data: gin.H{
			"camera_id": cameraID,
			"objects":   result.Objects,
		},
		Timestamp: time.Now().Unix(),
	})
}

func (h *EventHub) broadcast(msg ServerMessage) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, client := range h.clients {
		select {
		case client.send <- msg:
		default:
			h.logger.Warn("Event client lagging, message dropped",
				zap.String("client_id", client.id))
		}
	}
}

func (h *EventHub) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket connection", zap.Error(err))
		return
	}

	client := &eventClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan ServerMessage, 64),
	}

	h.mutex.Lock()
	h.clients[client.id] = client
	h.mutex.Unlock()

	h.logger.Info("Event client connected",
		zap.String("client_id", client.id),
		zap.String("client_ip", c.ClientIP()))

	go h.writePump(client)
	h.readPump(client)
}

func (h *EventHub) writePump(client *eventClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *EventHub) readPump(client *eventClient) {
	defer h.disconnect(client)

	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("Websocket error", zap.Error(err))
			}
			return
		}
	}
}

func (h *EventHub) disconnect(client *eventClient) {
	h.mutex.Lock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
	}
	h.mutex.Unlock()

	client.conn.Close()
	h.logger.Info("Event client disconnected", zap.String("client_id", client.id))
}

// ClientCount reports current subscriber count.
func (h *EventHub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}
