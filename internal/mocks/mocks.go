package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"battle-chat/internal/gamesession"
	"battle-chat/internal/models"
	"battle-chat/internal/push"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetByUID(ctx context.Context, uid string) (models.User, error) {
	args := m.Called(ctx, uid)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByUIDs(ctx context.Context, uids []string) ([]models.User, error) {
	args := m.Called(ctx, uids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) Create(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var created models.User
	if val := args.Get(0); val != nil {
		created = val.(models.User)
	}
	return created, args.Error(1)
}

func (m *UserRepositoryMock) Update(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) Create(ctx context.Context, personal bool, memberIDs []int) (models.Room, error) {
	args := m.Called(ctx, personal, memberIDs)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) FindPersonal(ctx context.Context, userA, userB int) (models.Room, error) {
	args := m.Called(ctx, userA, userB)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) GetForUser(ctx context.Context, roomID, userID int) (models.Room, error) {
	args := m.Called(ctx, roomID, userID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) ListForUser(ctx context.Context, userID int, personalOnly bool, activeWithin time.Duration) ([]models.Room, error) {
	args := m.Called(ctx, userID, personalOnly, activeWithin)
	var rooms []models.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) Members(ctx context.Context, roomID int) ([]models.UserSummary, error) {
	args := m.Called(ctx, roomID)
	var members []models.UserSummary
	if val := args.Get(0); val != nil {
		members = val.([]models.UserSummary)
	}
	return members, args.Error(1)
}

func (m *RoomRepositoryMock) AddMember(ctx context.Context, roomID, userID int) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) Touch(ctx context.Context, roomID int, at time.Time) error {
	args := m.Called(ctx, roomID, at)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, roomID, userID int, text string, at time.Time) (models.Message, error) {
	args := m.Called(ctx, roomID, userID, text, at)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListForRoom(ctx context.Context, roomID, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type ValidatorMock struct {
	mock.Mock
}

func (m *ValidatorMock) Validate(ctx context.Context, sessionKey, sessionValue, authDeviceID string) (gamesession.Identity, error) {
	args := m.Called(ctx, sessionKey, sessionValue, authDeviceID)
	var identity gamesession.Identity
	if val := args.Get(0); val != nil {
		identity = val.(gamesession.Identity)
	}
	return identity, args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) NotifyNewMessage(ctx context.Context, device push.Device, author, text string) error {
	args := m.Called(ctx, device, author, text)
	return args.Error(0)
}
