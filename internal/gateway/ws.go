package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arjun/scribe/internal/agent"
)

const (
	clientBuffer = 256
	writeWait    = 10 * time.Second
)

// Hub fans engine events out to every WebSocket client of one session. It
// implements agent.EventSink; Emit never blocks the workflow goroutine — a
// client that cannot keep up loses its oldest buffered events.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan agent.Event
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]bool)}
}

// Emit delivers one event to all connected clients, dropping the oldest
// buffered event per client on overflow.
func (h *Hub) Emit(evt agent.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- evt:
		default:
			select {
			case <-c.send:
			default:
			}
			select {
			case c.send <- evt:
			default:
			}
		}
	}
}

// Add registers an upgraded connection and starts its pumps. The read pump
// exists only to notice the client going away.
func (h *Hub) Add(conn *websocket.Conn) {
	c := &wsClient{
		conn: conn,
		send: make(chan agent.Event, clientBuffer),
	}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

func (h *Hub) writePump(c *wsClient) {
	for evt := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(evt); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) readPump(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

// CloseAll disconnects every client, used on session teardown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*wsClient]bool)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
