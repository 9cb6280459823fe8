package models

import "time"

// Room is a conversation. A personal room is a 1:1 conversation between
// exactly two users, unique per unordered pair; pair_key carries the
// sorted member id pair and a unique index on it enforces that.
type Room struct {
	ID        int       `db:"id" json:"id"`
	Personal  bool      `db:"personal" json:"personal"`
	PairKey   *string   `db:"pair_key" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RoomResponse is the API view of a room. Messages are only populated on
// single-room fetches and message posts.
type RoomResponse struct {
	ID        int           `json:"id"`
	Personal  bool          `json:"personal"`
	UpdatedAt time.Time     `json:"updated_at"`
	Users     []UserSummary `json:"users"`
	Messages  []Message     `json:"messages"`
}
