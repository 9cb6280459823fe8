package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"battle-chat/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

const roomColumns = `id, personal, pair_key, updated_at, created_at`

// uniqueViolation is the Postgres error code raised when the pair_key
// index rejects a concurrent duplicate personal room.
const uniqueViolation = "23505"

// RoomRepository abstracts room persistence and membership.
type RoomRepository interface {
	Create(ctx context.Context, personal bool, memberIDs []int) (models.Room, error)
	FindPersonal(ctx context.Context, userA, userB int) (models.Room, error)
	GetForUser(ctx context.Context, roomID, userID int) (models.Room, error)
	ListForUser(ctx context.Context, userID int, personalOnly bool, activeWithin time.Duration) ([]models.Room, error)
	Members(ctx context.Context, roomID int) ([]models.UserSummary, error)
	AddMember(ctx context.Context, roomID, userID int) error
	Touch(ctx context.Context, roomID int, at time.Time) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// pairKey builds the canonical key for a two-member personal room.
func pairKey(memberIDs []int) string {
	pair := append([]int(nil), memberIDs...)
	sort.Ints(pair)
	return fmt.Sprintf("%d:%d", pair[0], pair[1])
}

// Create inserts a room and its memberships in one transaction. For
// personal rooms the pair_key unique index may fire under a concurrent
// identical request; the caller handles that by re-running FindPersonal.
func (r *RoomRepo) Create(ctx context.Context, personal bool, memberIDs []int) (models.Room, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var key *string
	if personal {
		k := pairKey(memberIDs)
		key = &k
	}

	var room models.Room
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO rooms (personal, pair_key) VALUES ($1, $2) RETURNING `+roomColumns,
		personal, key).StructScan(&room); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicatePersonalRoom
		}
		return models.Room{}, err
	}

	for _, id := range memberIDs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)`, room.ID, id); err != nil {
			return models.Room{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// ErrDuplicatePersonalRoom signals a lost race on personal room
// creation; the existing room should be looked up and returned.
var ErrDuplicatePersonalRoom = errors.New("personal room already exists")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// FindPersonal locates the personal room for an unordered user pair.
// Exact pair match only; a superset room never qualifies.
func (r *RoomRepo) FindPersonal(ctx context.Context, userA, userB int) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room,
		`SELECT `+roomColumns+` FROM rooms WHERE personal=TRUE AND pair_key=$1`,
		pairKey([]int{userA, userB}))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// GetForUser fetches a room the user belongs to. Absent room and
// non-membership are indistinguishable to the caller on purpose.
func (r *RoomRepo) GetForUser(ctx context.Context, roomID, userID int) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room,
		`SELECT r.id, r.personal, r.pair_key, r.updated_at, r.created_at FROM rooms r
         INNER JOIN room_members rm ON rm.room_id = r.id
         WHERE r.id=$1 AND rm.user_id=$2`, roomID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// ListForUser returns rooms containing the user, newest activity first.
// activeWithin of zero means no recency filter.
func (r *RoomRepo) ListForUser(ctx context.Context, userID int, personalOnly bool, activeWithin time.Duration) ([]models.Room, error) {
	query := `SELECT r.id, r.personal, r.pair_key, r.updated_at, r.created_at FROM rooms r
         INNER JOIN room_members rm ON rm.room_id = r.id
         WHERE rm.user_id=$1`
	args := []interface{}{userID}
	if personalOnly {
		query += ` AND r.personal=TRUE`
	}
	if activeWithin > 0 {
		args = append(args, time.Now().Add(-activeWithin))
		query += fmt.Sprintf(` AND r.updated_at >= $%d`, len(args))
	}
	query += ` ORDER BY r.updated_at DESC`

	rooms := []models.Room{}
	err := r.db.SelectContext(ctx, &rooms, query, args...)
	return rooms, err
}

// Members returns the room's member summaries sorted ascending by uid.
func (r *RoomRepo) Members(ctx context.Context, roomID int) ([]models.UserSummary, error) {
	members := []models.UserSummary{}
	err := r.db.SelectContext(ctx, &members,
		`SELECT u.id, u.uid, u.name, u.avatar FROM users u
         INNER JOIN room_members rm ON rm.user_id = u.id
         WHERE rm.room_id=$1 ORDER BY u.uid ASC`, roomID)
	return members, err
}

// AddMember registers a user in a room, a no-op when already present.
func (r *RoomRepo) AddMember(ctx context.Context, roomID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)
         ON CONFLICT (room_id, user_id) DO NOTHING`, roomID, userID)
	return err
}

// Touch bumps the room's updated_at timestamp.
func (r *RoomRepo) Touch(ctx context.Context, roomID int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE rooms SET updated_at=$1 WHERE id=$2`, at, roomID)
	return err
}
