package roomhandler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"presencego/internal/broadcast"
	"presencego/internal/services/presence"
	"presencego/internal/services/room"
)

type Handler struct {
	rooms    room.IRoomService
	presence presence.IPresenceService
}

func New(rooms room.IRoomService, presenceSvc presence.IPresenceService) *Handler {
	return &Handler{rooms: rooms, presence: presenceSvc}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.list)
	r.GET("/rooms/:key", h.info)
	r.GET("/rooms/:key/members", h.members)
	r.POST("/rooms", h.create)
}

// @Summary		Get room details
// @Description	Returns directory information about a single room.
// @Tags			Rooms
// @Param			key	path		string	true	"Room key"	default(lobby)
// @Success		200	{object}	room.RoomDTO
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{key} [get]
func (h *Handler) info(c *gin.Context) {
	dto, err := h.rooms.GetRoom(c, c.Param("key"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto)
}

// @Summary		List rooms
// @Description	Retrieves a paginated list of registered rooms.
// @Tags			Rooms
// @Param			limit	query		int	false	"Max results (0-100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int	false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		room.RoomDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	var q ListRoomsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.rooms.ListRooms(c, q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Live room membership
// @Description	Returns who is currently connected to the room. Connection ids are digests, never the raw transport ids.
// @Tags			Rooms
// @Param			key	path		string	true	"Room key"	default(lobby)
// @Success		200	{object}	MembersResponse
// @Failure		500	{object}	ErrorResponse
// @Router			/rooms/{key}/members [get]
func (h *Handler) members(c *gin.Context) {
	members, err := h.presence.Members(c, c.Param("key"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	people := lo.Map(members, func(m presence.Member, _ int) broadcast.Person {
		return broadcast.Person{Name: m.Name, ID: broadcast.Digest(m.ConnectionID)}
	})
	c.JSON(http.StatusOK, MembersResponse{People: people})
}

// @Summary		Create a room
// @Description	Registers a new room in the directory.
// @Tags			Rooms
// @Param			body	body	CreateRoomBody	true	"Room payload"
// @Success		201
// @Failure		400	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/rooms [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateRoomBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.rooms.CreateRoom(ginCtx.Request.Context(), body.Key, body.Title); err != nil {
		status := http.StatusConflict
		if errors.Is(err, room.ErrInvalidRoomKey) {
			status = http.StatusBadRequest
		}
		ginCtx.JSON(status, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Status(http.StatusCreated)
}
