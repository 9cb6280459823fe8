package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"battle-chat/internal/middleware"
	"battle-chat/internal/models"
	"battle-chat/internal/repositories"
)

// UserHandler serves the reconciled caller profile.
type UserHandler struct {
	roomRepo repositories.RoomRepository
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(roomRepo repositories.RoomRepository) *UserHandler {
	return &UserHandler{roomRepo: roomRepo}
}

// GetUser handles GET /user. The auth middleware has already reconciled
// the caller; this only populates their room summaries. An `active`
// query param (seconds) narrows chats to recently updated rooms.
func (h *UserHandler) GetUser(c *gin.Context) {
	user := middleware.UserFromContext(c)

	var activeWithin time.Duration
	if raw := c.Query("active"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid active window"})
			return
		}
		activeWithin = time.Duration(seconds) * time.Second
	}

	rooms, err := h.roomRepo.ListForUser(c.Request.Context(), user.ID, false, activeWithin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	chats := make([]models.RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		resp, err := roomResponse(c.Request.Context(), h.roomRepo, room, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
			return
		}
		chats = append(chats, resp)
	}

	c.JSON(http.StatusOK, models.UserResponse{
		UserSummary: user.Summary(),
		Chats:       chats,
	})
}
