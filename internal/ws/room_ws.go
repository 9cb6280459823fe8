package ws

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"battle-chat/internal/gamesession"
	"battle-chat/internal/middleware"
	"battle-chat/internal/observability"
	"battle-chat/internal/repositories"
	"battle-chat/internal/telemetry"
)

// RoomWebSocketHandler upgrades room feed connections. Credentials ride
// in query params since websocket clients rarely set cookies.
type RoomWebSocketHandler struct {
	hub       *Hub
	roomRepo  repositories.RoomRepository
	validator gamesession.Validator
	userRepo  repositories.UserRepository
}

// NewRoomWebSocketHandler constructs a RoomWebSocketHandler.
func NewRoomWebSocketHandler(hub *Hub, roomRepo repositories.RoomRepository, validator gamesession.Validator, userRepo repositories.UserRepository) *RoomWebSocketHandler {
	return &RoomWebSocketHandler{hub: hub, roomRepo: roomRepo, validator: validator, userRepo: userRepo}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authorizes the caller, checks room membership and registers the
// connection with the hub.
func (h *RoomWebSocketHandler) Handle(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	ctx, span := telemetry.Tracer("battle-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	creds := middleware.CredentialsFromRequest(c)
	if !creds.WellFormed() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return
	}
	identity, err := h.validator.Validate(ctx, creds.SessionKey, creds.SessionValue, creds.AuthDeviceID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return
	}

	user, err := middleware.ReconcileUser(ctx, h.userRepo, identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load user"})
		return
	}

	if _, err := h.roomRepo.GetForUser(ctx, roomID, user.ID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      user.ID,
		UserUID:     user.UID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(roomID, conn, info)
	observability.IncWSEvent("connect")

	// drain the connection until the client goes away
	go func() {
		defer func() {
			h.hub.RemoveClient(roomID, conn)
			observability.IncWSEvent("disconnect")
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug().Err(err).Int("room_id", roomID).Msg("websocket read ended")
				}
				return
			}
		}
	}()
}
