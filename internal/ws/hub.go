package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"presencego/internal/broadcast"
)

// Hub indexes live connections by connection id and implements the
// point-to-point send primitive the fan-out pushes through.
type Hub struct {
	conns sync.Map // connID -> *clientConn
}

func NewHub() *Hub { return &Hub{} }

func (h *Hub) Register(connID string, c *clientConn) {
	h.conns.Store(connID, c)
}

func (h *Hub) Unregister(connID string) {
	if v, ok := h.conns.LoadAndDelete(connID); ok {
		v.(*clientConn).close()
	}
}

// Send pushes one frame to one still-open connection. A connection no
// longer registered fails with ErrConnGone; a write failure on a live
// connection is returned as-is (transient from the fan-out's point of
// view: the reader loop tears such connections down itself).
func (h *Hub) Send(connID string, data []byte) error {
	v, ok := h.conns.Load(connID)
	if !ok {
		return broadcast.ErrConnGone
	}
	return v.(*clientConn).write(websocket.TextMessage, data)
}

var _ broadcast.Sender = (*Hub)(nil)
