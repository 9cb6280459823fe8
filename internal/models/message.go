package models

import "time"

// Message is an append-only child of a room. Never mutated or deleted.
type Message struct {
	ID        int       `db:"id" json:"id"`
	RoomID    int       `db:"room_id" json:"room_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Text      string    `db:"text" json:"text"`
	DateAdded time.Time `db:"date_added" json:"date_added"`
}

// MessageResponse embeds the updated room a message was posted to, the
// shape POST /room/:room_id/message responds with.
type MessageResponse struct {
	Message
	Room RoomResponse `json:"room"`
}

// RoomEvent is broadcast over room websockets.
type RoomEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}
