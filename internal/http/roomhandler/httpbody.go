package roomhandler

import "presencego/internal/broadcast"

type CreateRoomBody struct {
	Key   string `json:"key"   binding:"required" example:"lobby"`
	Title string `json:"title" binding:"required" example:"The Lobby"`
} // @name CreateRoomRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListRoomsQuery struct {
	Limit  int `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int `form:"offset,default=0"  binding:"gte=0"`
} // @name ListRoomsQuery

type MembersResponse struct {
	People []broadcast.Person `json:"people"`
} // @name MembersResponse
