package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"presencego/internal/broadcast"
	"presencego/internal/services/presence"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second // must be < pongWait
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
}

type WsServer struct {
	hub         *Hub
	router      *Router
	presenceSvc presence.IPresenceService
	defaultRoom string
}

func NewWsServer(h *Hub, presenceSvc presence.IPresenceService, defaultRoom string) *WsServer {
	router := NewRouter()
	srv := &WsServer{
		hub:         h,
		router:      router,
		presenceSvc: presenceSvc,
		defaultRoom: defaultRoom,
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

// Handle upgrades the connection, assigns it an opaque id and runs the
// connect lifecycle: register with the hub first (so the join broadcast
// reaches the newcomer too), then join the room. A failed join rejects
// the connection.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	roomKey := ginCtx.DefaultQuery("room", s.defaultRoom)
	name := ginCtx.Query("name")

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(512)

	connID := uuid.NewString()
	wsConn := &clientConn{rawConn: rawConn}
	s.hub.Register(connID, wsConn)

	members, err := s.presenceSvc.Join(ginCtx.Request.Context(), roomKey, connID, name)
	if err != nil {
		zap.L().Warn("ws.join_rejected",
			zap.String("room", roomKey),
			zap.String("conn_id", connID),
			zap.Error(err))
		s.reject(connID, wsConn, err)
		return
	}

	// Initial snapshot, before any broadcast can race ahead of it.
	if err := wsConn.writeJSON(map[string]any{
		"event": "room/snapshot",
		"body":  MembersResponse{People: anonymize(members)},
	}); err != nil {
		zap.L().Warn("ws.snapshot", zap.Error(err))
	}

	go s.reader(roomKey, connID, name, wsConn)
	go s.pinger(connID, wsConn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 room/members ---------------------------------------------------------
	Register(
		s.router,
		"room/members",
		func(ctx context.Context, cc *ConnContext, _ MembersRequest) (MembersResponse, error) {
			members, err := cc.Server.presenceSvc.Members(ctx, cc.RoomKey)
			if err != nil {
				return MembersResponse{}, err
			}
			return MembersResponse{People: anonymize(members)}, nil
		},
	)
}

func (s *WsServer) reject(connID string, conn *clientConn, cause error) {
	msg := "join rejected"
	if errors.Is(cause, presence.ErrInvalidName) {
		msg = cause.Error()
	}
	deadline := time.Now().Add(writeWait)
	_ = conn.rawConn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), deadline)
	s.hub.Unregister(connID)
}

func (s *WsServer) reader(roomKey, connID, name string, conn *clientConn) {
	defer func() {
		s.hub.Unregister(connID)
		if _, _, err := s.presenceSvc.Leave(context.Background(), roomKey, connID); err != nil {
			// Unknown leaver happens when the fan-out or the reaper pruned
			// this connection first.
			if errors.Is(err, presence.ErrUnknownLeaver) {
				zap.L().Debug("ws.leave_already_gone", zap.String("conn_id", connID))
			} else {
				zap.L().Warn("ws.leave", zap.String("conn_id", connID), zap.Error(err))
			}
		}
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	cc := &ConnContext{RoomKey: roomKey, ConnID: connID, Name: name, Server: s}

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": "error",
				"body":  ErrorBody{Error: err.Error()},
			})
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		reply := map[string]any{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

// pinger keeps the transport alive and refreshes the presence lease on
// every round so the reaper only ever evicts genuinely dead connections.
func (s *WsServer) pinger(connID string, conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.ping(); err != nil {
			conn.close()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := s.presenceSvc.Touch(ctx, connID)
		cancel()
		if err != nil {
			zap.L().Debug("ws.touch", zap.String("conn_id", connID), zap.Error(err))
		}
	}
}

func anonymize(members []presence.Member) []broadcast.Person {
	return lo.Map(members, func(m presence.Member, _ int) broadcast.Person {
		return broadcast.Person{Name: m.Name, ID: broadcast.Digest(m.ConnectionID)}
	})
}
