package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/bv-saas/web/internal/models"
	"github.com/bv-saas/web/internal/widget"
)

// WebSocket message types for the widget protocol
const (
	// Client -> Server messages
	MsgTypeFileSelect    = "file:select"
	MsgTypeUploadTrigger = "upload:trigger"
	MsgTypePing          = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeAck       = "ack"
	MsgTypeStatus    = "status"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// DefaultReadLimit caps a single websocket message when no limit is configured.
// File bytes never travel over the socket, so messages stay small.
const DefaultReadLimit = 64 * 1024

const writeWait = 10 * time.Second

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// FileSelectPayload describes a file chosen in the page. A null payload clears
// the selection. Contents, when an uploader needs them, are sent separately
// with PUT /api/widgets/:id/file.
type FileSelectPayload struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
}

// WSAckPayload acknowledges a client request
type WSAckPayload struct {
	Request string                `json:"request"`
	Started bool                  `json:"started,omitempty"`
	Widget  models.WidgetSnapshot `json:"widget"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// WebSocketHandler gives each connection its own upload widget
type WebSocketHandler struct {
	sessions  SessionManager
	upgrader  websocket.Upgrader
	logger    log.Logger
	readLimit int64
}

// NewWebSocketHandler creates a new widget websocket handler
func NewWebSocketHandler(sessions SessionManager, logger log.Logger, readLimit int64) SocketHandler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}
	return &WebSocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		logger:    log.With(logger, "component", "websocket"),
		readLimit: readLimit,
	}
}

// HandleWebSocket upgrades the connection and runs the widget protocol until
// the client goes away. The widget is torn down on disconnect.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(wsh.readLimit)

	conn := &wsConn{ws: ws}
	state := wsh.sessions.Create()
	w := state.Widget
	id := w.ID()
	logger := log.With(wsh.logger, "widget", id)

	defer wsh.sessions.Remove(id)
	release, _ := wsh.sessions.Attach(id)
	defer release()
	unsubscribe := w.Subscribe(func(snap models.WidgetSnapshot) {
		wsh.sendMessage(conn, WSMessage{
			Type:      MsgTypeStatus,
			ID:        id,
			Payload:   mustJSON(snap),
			Timestamp: time.Now().UnixMilli(),
		})
	})
	defer unsubscribe()

	level.Debug(logger).Log("msg", "client connected")

	wsh.sendMessage(conn, WSMessage{
		Type:      MsgTypeConnected,
		ID:        id,
		Payload:   mustJSON(w.Snapshot()),
		Timestamp: time.Now().UnixMilli(),
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				level.Warn(logger).Log("msg", "connection error", "err", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			wsh.sendError(conn, "Invalid message: "+err.Error(), "INVALID_MESSAGE")
			continue
		}

		// The session may have been evicted to make room for another page.
		// Closing the socket makes the client reconnect to a fresh widget.
		if !wsh.sessions.Touch(id) || w.Closed() {
			level.Info(logger).Log("msg", "widget closed, dropping connection")
			wsh.sendError(conn, "Widget session ended", "WIDGET_CLOSED")
			break
		}

		switch msg.Type {
		case MsgTypePing:
			wsh.sendMessage(conn, WSMessage{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UnixMilli()})
		case MsgTypeFileSelect:
			wsh.handleFileSelect(conn, w, msg)
		case MsgTypeUploadTrigger:
			wsh.handleUploadTrigger(conn, w, msg)
		default:
			wsh.sendError(conn, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	level.Debug(logger).Log("msg", "client disconnected")
	return nil
}

// handleFileSelect replaces the widget's selection
func (wsh *WebSocketHandler) handleFileSelect(conn *wsConn, w *widget.Widget, msg WSMessage) {
	file, err := decodeFileSelect(msg.Payload)
	if err != nil {
		wsh.sendError(conn, err.Error(), "INVALID_PAYLOAD")
		return
	}

	w.SelectFile(file)
	wsh.sendAck(conn, msg, WSAckPayload{Request: msg.Type, Widget: w.Snapshot()})
}

// handleUploadTrigger presses the Upload button. The "Uploading..." status
// message is pushed before the ack.
func (wsh *WebSocketHandler) handleUploadTrigger(conn *wsConn, w *widget.Widget, msg WSMessage) {
	started := w.TriggerUpload()
	wsh.sendAck(conn, msg, WSAckPayload{Request: msg.Type, Started: started, Widget: w.Snapshot()})
}

func decodeFileSelect(raw json.RawMessage) (*models.FileRef, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var payload FileSelectPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, NewBadRequestError("invalid file payload", err)
	}
	if payload.Name == "" {
		return nil, NewValidationError("name")
	}

	if payload.Size < 0 {
		return nil, NewValidationError("size")
	}

	return &models.FileRef{
		Name:        payload.Name,
		Size:        payload.Size,
		ContentType: payload.ContentType,
	}, nil
}

func (wsh *WebSocketHandler) sendAck(conn *wsConn, req WSMessage, payload WSAckPayload) {
	wsh.sendMessage(conn, WSMessage{
		Type:      MsgTypeAck,
		ID:        req.ID,
		Payload:   mustJSON(payload),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (wsh *WebSocketHandler) sendMessage(conn *wsConn, msg WSMessage) {
	if err := conn.writeJSON(msg); err != nil {
		level.Debug(wsh.logger).Log("msg", "write failed", "type", msg.Type, "err", err)
	}
}

func (wsh *WebSocketHandler) sendError(conn *wsConn, message, code string) {
	wsh.sendMessage(conn, WSMessage{
		Type:      MsgTypeError,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
		}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
