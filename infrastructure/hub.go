package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gigflow/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	clientBuffer   = 16
)

// Hub keeps live websocket connections grouped into one room per user and
// pushes notifications to every connection in the recipient's room.
type Hub struct {
	log *zap.SugaredLogger

	mu    sync.RWMutex
	rooms map[string]map[*wsClient]struct{}
}

type wsClient struct {
	hub       *Hub
	conn      *websocket.Conn
	userID    string
	send      chan domain.Notification
	closeOnce sync.Once
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:   log,
		rooms: map[string]map[*wsClient]struct{}{},
	}
}

// Deliver implements domain.NotificationSink. A recipient with no open
// connection is not an error; slow connections skip the message.
func (h *Hub) Deliver(_ context.Context, n domain.Notification) error {
	// Sends never block, and channels are only closed under the write lock.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[n.RecipientID] {
		select {
		case c.send <- n:
		default:
			h.log.Debugw("websocket client buffer full", "user_id", c.userID, "type", n.Type)
		}
	}
	return nil
}

// Connected returns how many connections userID currently has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Serve joins conn to userID's room and blocks until the peer goes away.
func (h *Hub) Serve(conn *websocket.Conn, userID string) {
	c := &wsClient{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan domain.Notification, clientBuffer),
	}
	h.register(c)
	go c.writePump()
	c.readPump()
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	room, ok := h.rooms[c.userID]
	if !ok {
		room = map[*wsClient]struct{}{}
		h.rooms[c.userID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	wsConnections.Inc()
	h.log.Debugw("websocket joined", "user_id", c.userID)
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if room, ok := h.rooms[c.userID]; ok {
		if _, ok := room[c]; ok {
			delete(room, c)
			wsConnections.Dec()
		}
		if len(room) == 0 {
			delete(h.rooms, c.userID)
		}
	}
	c.closeOnce.Do(func() { close(c.send) })
	h.mu.Unlock()

	h.log.Debugw("websocket left", "user_id", c.userID)
}

// readPump only services control frames; clients have nothing to say.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.log.Warnw("websocket read error", "user_id", c.userID, "error", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case n, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(n); err != nil {
				c.hub.log.Debugw("websocket write error", "user_id", c.userID, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
