package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"battle-chat/internal/middleware"
	"battle-chat/internal/models"
	"battle-chat/internal/push"
	"battle-chat/internal/repositories"
	"battle-chat/internal/telemetry"
	"battle-chat/internal/ws"
)

// MessageHandler appends messages and fans out notifications.
type MessageHandler struct {
	roomRepo      repositories.RoomRepository
	userRepo      repositories.UserRepository
	messageRepo   repositories.MessageRepository
	notifier      push.Notifier
	hub           *ws.Hub
	audit         *telemetry.AuditEmitter
	notifyTimeout time.Duration
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(roomRepo repositories.RoomRepository, userRepo repositories.UserRepository, messageRepo repositories.MessageRepository, notifier push.Notifier, hub *ws.Hub, audit *telemetry.AuditEmitter, notifyTimeout time.Duration) *MessageHandler {
	if notifyTimeout <= 0 {
		notifyTimeout = 10 * time.Second
	}
	return &MessageHandler{
		roomRepo:      roomRepo,
		userRepo:      userRepo,
		messageRepo:   messageRepo,
		notifier:      notifier,
		hub:           hub,
		audit:         audit,
		notifyTimeout: notifyTimeout,
	}
}

// PostMessage handles POST /room/:room_id/message. The body is checked
// before the room so a missing text is always 409. Non-members get 404
// rather than 403 so the endpoint never confirms a room exists. Push
// failures are logged, never returned: the message is already persisted.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "missing required message attribute in request body"})
		return
	}

	user := middleware.UserFromContext(c)
	room, err := h.roomRepo.GetForUser(c.Request.Context(), roomID, user.ID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return
	}

	now := time.Now().UTC()
	msg, err := h.messageRepo.Create(c.Request.Context(), roomID, user.ID, req.Text, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	if err := h.roomRepo.Touch(c.Request.Context(), roomID, now); err != nil {
		// the message is in; a stale updated_at is not worth failing over
		log.Warn().Err(err).Int("room_id", roomID).Msg("room touch failed")
	}
	room.UpdatedAt = now

	messages, err := h.messageRepo.ListForRoom(c.Request.Context(), roomID, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	roomResp, err := roomResponse(c.Request.Context(), h.roomRepo, room, messages)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	h.hub.BroadcastMessage(roomID, msg)
	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("message %d posted to room %d", msg.ID, roomID), requestIDFromContext(c), user.UID)

	go h.fanOut(roomResp.Users, user, msg)

	c.JSON(http.StatusOK, models.MessageResponse{Message: msg, Room: roomResp})
}

// fanOut pushes one notification per registered device of every member
// except the sender. Runs detached from the request.
func (h *MessageHandler) fanOut(members []models.UserSummary, sender models.User, msg models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), h.notifyTimeout)
	defer cancel()

	uids := make([]string, 0, len(members))
	for _, m := range members {
		if m.UID != sender.UID {
			uids = append(uids, m.UID)
		}
	}
	recipients, err := h.userRepo.GetByUIDs(ctx, uids)
	if err != nil {
		log.Warn().Err(err).Int("room_id", msg.RoomID).Msg("notification fan-out: loading recipients failed")
		return
	}

	for _, recipient := range recipients {
		for _, device := range deviceTargets(recipient) {
			if err := h.notifier.NotifyNewMessage(ctx, device, sender.Name, msg.Text); err != nil {
				log.Warn().Err(err).
					Str("uid", recipient.UID).
					Str("platform", device.Platform).
					Msg("push notification failed")
			}
		}
	}
}

func deviceTargets(user models.User) []push.Device {
	var devices []push.Device
	if user.IOSDeviceID != "" {
		devices = append(devices, push.Device{Platform: "ios", Token: user.IOSDeviceID})
	}
	if user.AndroidDeviceID != "" {
		devices = append(devices, push.Device{Platform: "android", Token: user.AndroidDeviceID})
	}
	return devices
}
