package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"battle-chat/internal/mocks"
	"battle-chat/internal/models"
	"battle-chat/internal/push"
	"battle-chat/internal/repositories"
	"battle-chat/internal/ws"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", models.User{ID: 1, UID: "userA", Name: "Alice"})
		c.Next()
	})
	r.POST("/room/:room_id/message", handler.PostMessage)
	return r
}

func TestPostMessageSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewMessageHandler(roomRepo, userRepo, messageRepo, notifier, ws.NewHub(), nil, time.Second)
	router := setupMessageRouter(handler)

	msg := models.Message{ID: 7, RoomID: 3, UserID: 1, Text: "hello"}
	roomRepo.On("GetForUser", mock.Anything, 3, 1).
		Return(models.Room{ID: 3}, nil).Once()
	messageRepo.On("Create", mock.Anything, 3, 1, "hello", mock.Anything).
		Return(msg, nil).Once()
	roomRepo.On("Touch", mock.Anything, 3, mock.Anything).Return(nil).Once()
	messageRepo.On("ListForRoom", mock.Anything, 3, 0).
		Return([]models.Message{msg}, nil).Once()
	roomRepo.On("Members", mock.Anything, 3).
		Return([]models.UserSummary{{ID: 1, UID: "userA"}, {ID: 2, UID: "userB"}}, nil).Once()
	userRepo.On("GetByUIDs", mock.Anything, []string{"userB"}).
		Return([]models.User{}, nil).Maybe()

	req := httptest.NewRequest(http.MethodPost, "/room/3/message", bytes.NewBufferString(`{"text":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 7, resp.Message.ID)
	assert.Equal(t, "hello", resp.Message.Text)
	assert.Equal(t, 3, resp.Room.ID)
	assert.Len(t, resp.Room.Messages, 1)
	roomRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageInvalidRoomID(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewMessageHandler(roomRepo, new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.NotifierMock), ws.NewHub(), nil, time.Second)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/room/abc/message", bytes.NewBufferString(`{"text":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	roomRepo.AssertNotCalled(t, "GetForUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageNonMemberGets404(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(roomRepo, new(mocks.UserRepositoryMock), messageRepo, new(mocks.NotifierMock), ws.NewHub(), nil, time.Second)
	router := setupMessageRouter(handler)

	roomRepo.On("GetForUser", mock.Anything, 3, 1).
		Return(models.Room{}, repositories.ErrRoomNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/room/3/message", bytes.NewBufferString(`{"text":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageMissingTextBeforeRoomLookup(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(roomRepo, new(mocks.UserRepositoryMock), messageRepo, new(mocks.NotifierMock), ws.NewHub(), nil, time.Second)
	router := setupMessageRouter(handler)

	for _, body := range []string{`{}`, `{"text":"   "}`} {
		req := httptest.NewRequest(http.MethodPost, "/room/3/message", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusConflict, rec.Code, "body %s", body)
	}
	// 409 wins even when the caller is not a member of the room
	roomRepo.AssertNotCalled(t, "GetForUser", mock.Anything, mock.Anything, mock.Anything)
	messageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageSucceedsWhenTouchFails(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(roomRepo, userRepo, messageRepo, new(mocks.NotifierMock), ws.NewHub(), nil, time.Second)
	router := setupMessageRouter(handler)

	msg := models.Message{ID: 8, RoomID: 3, UserID: 1, Text: "hi"}
	roomRepo.On("GetForUser", mock.Anything, 3, 1).Return(models.Room{ID: 3}, nil).Once()
	messageRepo.On("Create", mock.Anything, 3, 1, "hi", mock.Anything).Return(msg, nil).Once()
	roomRepo.On("Touch", mock.Anything, 3, mock.Anything).Return(errors.New("db down")).Once()
	messageRepo.On("ListForRoom", mock.Anything, 3, 0).Return([]models.Message{msg}, nil).Once()
	roomRepo.On("Members", mock.Anything, 3).
		Return([]models.UserSummary{{ID: 1, UID: "userA"}}, nil).Once()
	userRepo.On("GetByUIDs", mock.Anything, mock.Anything).Return([]models.User{}, nil).Maybe()

	req := httptest.NewRequest(http.MethodPost, "/room/3/message", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFanOutSkipsSenderAndTokenlessDevices(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewMessageHandler(new(mocks.RoomRepositoryMock), userRepo, new(mocks.MessageRepositoryMock), notifier, ws.NewHub(), nil, time.Second)

	sender := models.User{ID: 1, UID: "userA", Name: "Alice"}
	members := []models.UserSummary{{ID: 1, UID: "userA"}, {ID: 2, UID: "userB"}, {ID: 3, UID: "userC"}}
	userRepo.On("GetByUIDs", mock.Anything, []string{"userB", "userC"}).
		Return([]models.User{
			{ID: 2, UID: "userB", IOSDeviceID: "ios-token-b", AndroidDeviceID: "and-token-b"},
			{ID: 3, UID: "userC"},
		}, nil).Once()
	notifier.On("NotifyNewMessage", mock.Anything, push.Device{Platform: "ios", Token: "ios-token-b"}, "Alice", "hello").
		Return(nil).Once()
	notifier.On("NotifyNewMessage", mock.Anything, push.Device{Platform: "android", Token: "and-token-b"}, "Alice", "hello").
		Return(nil).Once()

	handler.fanOut(members, sender, models.Message{ID: 7, RoomID: 3, Text: "hello"})

	notifier.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestFanOutSwallowsNotifierErrors(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewMessageHandler(new(mocks.RoomRepositoryMock), userRepo, new(mocks.MessageRepositoryMock), notifier, ws.NewHub(), nil, time.Second)

	userRepo.On("GetByUIDs", mock.Anything, []string{"userB"}).
		Return([]models.User{{ID: 2, UID: "userB", IOSDeviceID: "ios-token-b"}}, nil).Once()
	notifier.On("NotifyNewMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("gateway unreachable")).Once()

	handler.fanOut(
		[]models.UserSummary{{ID: 1, UID: "userA"}, {ID: 2, UID: "userB"}},
		models.User{ID: 1, UID: "userA", Name: "Alice"},
		models.Message{ID: 7, RoomID: 3, Text: "hello"},
	)

	notifier.AssertExpectations(t)
}
