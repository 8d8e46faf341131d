package ws

import (
	"encoding/json"

	"presencego/internal/broadcast"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "room/members"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// MembersRequest is the (empty) body for "room/members".
type MembersRequest struct{}

// MembersResponse carries the anonymized member list.
type MembersResponse struct {
	People []broadcast.Person `json:"people"`
}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
}
