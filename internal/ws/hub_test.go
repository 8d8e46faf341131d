package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"presencego/internal/broadcast"
)

func TestSendToUnknownConnectionIsGone(t *testing.T) {
	h := NewHub()
	err := h.Send("nope", []byte("hi"))
	assert.ErrorIs(t, err, broadcast.ErrConnGone)
}

func TestUnregisterUnknownConnectionIsNoOp(t *testing.T) {
	h := NewHub()
	assert.NotPanics(t, func() { h.Unregister("nope") })
}

func TestSendAfterUnregisterIsGone(t *testing.T) {
	h := NewHub()
	h.Register("c1", &clientConn{})
	h.Unregister("c1")

	err := h.Send("c1", []byte("hi"))
	assert.ErrorIs(t, err, broadcast.ErrConnGone)
}
