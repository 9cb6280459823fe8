package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"battle-chat/internal/models"
	"battle-chat/internal/repositories"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

// roomResponse assembles the API view of a room: member summaries sorted
// by uid (the repository guarantees the order) plus an optional message
// list.
func roomResponse(ctx context.Context, rooms repositories.RoomRepository, room models.Room, messages []models.Message) (models.RoomResponse, error) {
	members, err := rooms.Members(ctx, room.ID)
	if err != nil {
		return models.RoomResponse{}, err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return models.RoomResponse{
		ID:        room.ID,
		Personal:  room.Personal,
		UpdatedAt: room.UpdatedAt,
		Users:     members,
		Messages:  messages,
	}, nil
}
