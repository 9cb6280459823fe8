package models

import "time"

// User is the local cache of an externally asserted identity. The game
// platform owns the profile fields; we only mirror them.
type User struct {
	ID              int       `db:"id" json:"id"`
	UID             string    `db:"uid" json:"uid"`
	Name            string    `db:"name" json:"name"`
	Avatar          string    `db:"avatar" json:"avatar"`
	IOSDeviceID     string    `db:"ios_device_id" json:"-"`
	AndroidDeviceID string    `db:"android_device_id" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// UserSummary is the public projection of a user embedded in room
// responses. Device tokens are never part of it.
type UserSummary struct {
	ID     int    `db:"id" json:"id"`
	UID    string `db:"uid" json:"uid"`
	Name   string `db:"name" json:"name"`
	Avatar string `db:"avatar" json:"avatar"`
}

// Summary strips a User down to its public fields.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, UID: u.UID, Name: u.Name, Avatar: u.Avatar}
}

// UserResponse is returned by GET /user: the reconciled user plus the
// rooms they belong to.
type UserResponse struct {
	UserSummary
	Chats []RoomResponse `json:"chats"`
}
