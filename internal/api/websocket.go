package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/steplogs/viewer/internal/models"
	"github.com/steplogs/viewer/internal/store"
)

// WebSocket message types for the live log feed
const (
	MsgTypeSnapshot = "snapshot"
	MsgTypeRecord   = "record"
	MsgTypePing     = "ping"
	MsgTypePong     = "pong"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// WSMessage is sent to live feed clients.
type WSMessage struct {
	Type      string             `json:"type"`
	Records   []models.LogRecord `json:"records,omitempty"`
	Record    *models.LogRecord  `json:"record,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

// WebSocketHandler pushes records to browsers as they are ingested.
type WebSocketHandler struct {
	store    *store.LogStore
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewWebSocketHandler creates a live feed handler. The logger may be nil.
func NewWebSocketHandler(st *store.LogStore, logger *log.Logger) *WebSocketHandler {
	if logger == nil {
		logger = log.New("websocket")
		logger.SetLevel(log.OFF)
	}
	return &WebSocketHandler{
		store: st,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
		logger: logger,
	}
}

// HandleWebSocket upgrades the connection, sends the current snapshot and
// then every record inserted or changed until the client goes away.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	snapshot, records, cancel := wsh.store.SnapshotAndSubscribe()
	defer cancel()

	wsh.logger.Debugf("[WebSocket] client %s connected", c.RealIP())

	if err := wsh.send(ws, WSMessage{Type: MsgTypeSnapshot, Records: snapshot, Timestamp: time.Now().UnixMilli()}); err != nil {
		return nil
	}

	// Reader: answers pings and notices the client closing.
	pings := make(chan struct{}, 1)
	closed := make(chan struct{})
	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsh.logger.Warnf("[WebSocket] connection error: %v", err)
				}
				return
			}
			ws.SetReadDeadline(time.Now().Add(wsPongWait))
			if msg.Type == MsgTypePing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-records:
			if !ok {
				return nil
			}
			if err := wsh.send(ws, WSMessage{Type: MsgTypeRecord, Record: &rec, Timestamp: time.Now().UnixMilli()}); err != nil {
				return nil
			}
		case <-pings:
			if err := wsh.send(ws, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()}); err != nil {
				return nil
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			wsh.logger.Debugf("[WebSocket] client %s disconnected", c.RealIP())
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, msg WSMessage) error {
	ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := ws.WriteJSON(msg); err != nil {
		wsh.logger.Warnf("[WebSocket] failed to send %s: %v", msg.Type, err)
		return err
	}
	return nil
}
