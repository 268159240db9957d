package domain

import "time"

type RoomID string
type UserID string

// Room is the persisted record for a named broadcast session. The room id is
// user-chosen and doubles as the signaling identity on the relay, so it must
// be globally unique there.
type Room struct {
	ID        RoomID    `json:"id"`
	IsLive    bool      `json:"is_live"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	OwnerID   UserID    `json:"user_id,omitempty"`
}

type RoomEventType string

const (
	RoomCreated RoomEventType = "room.created"
	RoomUpdated RoomEventType = "room.updated"
	RoomDeleted RoomEventType = "room.deleted"
)

// RoomEvent is delivered on the room change subscription that drives the
// live-rooms listing.
type RoomEvent struct {
	Type RoomEventType `json:"type"`
	Room Room          `json:"room"`
}
