package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"battle-chat/internal/models"
)

// MessageRepository defines interactions for room messages.
type MessageRepository interface {
	Create(ctx context.Context, roomID, userID int, text string, at time.Time) (models.Message, error)
	ListForRoom(ctx context.Context, roomID, limit int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores a message in a room.
func (r *MessageRepo) Create(ctx context.Context, roomID, userID int, text string, at time.Time) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (room_id, user_id, text, date_added) VALUES ($1, $2, $3, $4)
         RETURNING id, room_id, user_id, text, date_added`,
		roomID, userID, text, at).StructScan(&msg)
	return msg, err
}

// ListForRoom returns room messages ascending by date_added. A positive
// limit keeps the oldest N; a negative limit keeps the newest |N|, still
// returned ascending; zero returns everything.
func (r *MessageRepo) ListForRoom(ctx context.Context, roomID, limit int) ([]models.Message, error) {
	query := `SELECT id, room_id, user_id, text, date_added FROM messages WHERE room_id=$1 ORDER BY date_added ASC, id ASC`
	args := []interface{}{roomID}

	newestFirst := false
	switch {
	case limit > 0:
		args = append(args, limit)
		query += ` LIMIT $2`
	case limit < 0:
		newestFirst = true
		query = `SELECT id, room_id, user_id, text, date_added FROM messages WHERE room_id=$1 ORDER BY date_added DESC, id DESC LIMIT $2`
		args = append(args, -limit)
	}

	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}

	if newestFirst {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}
	return msgs, nil
}
