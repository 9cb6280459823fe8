package ws

import "time"

type ConnInfo struct {
	ConnID      string
	UserID      int
	UserUID     string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
