package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"battle-chat/internal/middleware"
	"battle-chat/internal/models"
	"battle-chat/internal/repositories"
	"battle-chat/internal/telemetry"
)

// RoomHandler manages room creation, listing and retrieval.
type RoomHandler struct {
	roomRepo    repositories.RoomRepository
	userRepo    repositories.UserRepository
	messageRepo repositories.MessageRepository
	audit       *telemetry.AuditEmitter
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(roomRepo repositories.RoomRepository, userRepo repositories.UserRepository, messageRepo repositories.MessageRepository, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{
		roomRepo:    roomRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		audit:       audit,
	}
}

// CreateRoom handles POST /room. Personal rooms are idempotent per
// unordered member pair: an existing one is returned untouched.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	requester := middleware.UserFromContext(c)

	var req struct {
		Users    []string `json:"users"`
		Personal bool     `json:"personal"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Users) == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "missing required users attribute"})
		return
	}

	seen := make(map[string]struct{}, len(req.Users))
	for _, uid := range req.Users {
		if _, dup := seen[uid]; dup {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duplicate user in member list"})
			return
		}
		seen[uid] = struct{}{}
	}
	if len(req.Users) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room requires at least 2 distinct users"})
		return
	}
	if _, ok := seen[requester.UID]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requester must be included in users"})
		return
	}
	if req.Personal && len(req.Users) != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "personal room can be created only with 2 distinct users"})
		return
	}

	members, err := h.userRepo.GetByUIDs(c.Request.Context(), req.Users)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve users"})
		return
	}
	if len(members) != len(req.Users) {
		resolved := make(map[string]struct{}, len(members))
		for _, m := range members {
			resolved[m.UID] = struct{}{}
		}
		var unresolved []string
		for _, uid := range req.Users {
			if _, ok := resolved[uid]; !ok {
				unresolved = append(unresolved, uid)
			}
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown users: %s", strings.Join(unresolved, ", "))})
		return
	}

	memberIDs := make([]int, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.ID)
	}

	if req.Personal {
		existing, err := h.roomRepo.FindPersonal(c.Request.Context(), memberIDs[0], memberIDs[1])
		if err == nil {
			h.respondRoom(c, existing)
			return
		}
		if !errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
			return
		}
	}

	room, err := h.roomRepo.Create(c.Request.Context(), req.Personal, memberIDs)
	if errors.Is(err, repositories.ErrDuplicatePersonalRoom) {
		// lost the race against an identical request; return the winner
		room, err = h.roomRepo.FindPersonal(c.Request.Context(), memberIDs[0], memberIDs[1])
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("room %d created", room.ID), requestIDFromContext(c), requester.UID)
	h.respondRoom(c, room)
}

// ListRooms handles GET /room. The personal flag filters by presence,
// not value: ?personal and ?personal=false both narrow to personal rooms.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	user := middleware.UserFromContext(c)
	personalOnly := c.Request.URL.Query().Has("personal")

	rooms, err := h.roomRepo.ListForUser(c.Request.Context(), user.ID, personalOnly, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}

	responses := make([]models.RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		resp, err := roomResponse(c.Request.Context(), h.roomRepo, room, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
			return
		}
		responses = append(responses, resp)
	}

	c.JSON(http.StatusOK, responses)
}

// GetRoom handles GET /room/:room_id. A positive limit returns the
// oldest N messages, a negative one the newest |N|; either way the
// response is sorted ascending by date_added.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
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

	messages, err := h.messageRepo.ListForRoom(c.Request.Context(), roomID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	resp, err := roomResponse(c.Request.Context(), h.roomRepo, room, messages)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddUser handles POST /room/:room_id/user, registering an existing
// user into a non-personal room. Idempotent for current members.
func (h *RoomHandler) AddUser(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req struct {
		UID string `json:"uid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UID == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "missing required uid attribute"})
		return
	}

	requester := middleware.UserFromContext(c)
	room, err := h.roomRepo.GetForUser(c.Request.Context(), roomID, requester.ID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return
	}
	if room.Personal {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot add users to a personal room"})
		return
	}

	user, err := h.userRepo.GetByUID(c.Request.Context(), req.UID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "no such user"})
		return
	}

	if err := h.roomRepo.AddMember(c.Request.Context(), roomID, user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add user"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("user %s added to room %d", user.UID, roomID), requestIDFromContext(c), requester.UID)
	c.JSON(http.StatusOK, user.Summary())
}

func (h *RoomHandler) respondRoom(c *gin.Context, room models.Room) {
	resp, err := roomResponse(c.Request.Context(), h.roomRepo, room, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}
	c.JSON(http.StatusOK, resp)
}
