package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"battle-chat/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, uid, name, avatar, ios_device_id, android_device_id, created_at`

// UserRepository abstracts user persistence.
type UserRepository interface {
	GetByUID(ctx context.Context, uid string) (models.User, error)
	GetByUIDs(ctx context.Context, uids []string) ([]models.User, error)
	Create(ctx context.Context, user models.User) (models.User, error)
	Update(ctx context.Context, user models.User) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetByUID fetches a user by their external identity.
func (r *UserRepo) GetByUID(ctx context.Context, uid string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE uid=$1`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetByUIDs resolves a set of uids. Callers compare lengths to detect
// unresolved entries; no error is raised for partial hits.
func (r *UserRepo) GetByUIDs(ctx context.Context, uids []string) ([]models.User, error) {
	if len(uids) == 0 {
		return []models.User{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE uid IN (?)`, uids)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

// Create persists a new user record.
func (r *UserRepo) Create(ctx context.Context, user models.User) (models.User, error) {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (uid, name, avatar, ios_device_id, android_device_id)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING `+userColumns,
		user.UID, user.Name, user.Avatar, user.IOSDeviceID, user.AndroidDeviceID).
		StructScan(&user)
	return user, err
}

// Update overwrites the externally sourced fields of an existing user.
func (r *UserRepo) Update(ctx context.Context, user models.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name=$1, avatar=$2, ios_device_id=$3, android_device_id=$4 WHERE id=$5`,
		user.Name, user.Avatar, user.IOSDeviceID, user.AndroidDeviceID, user.ID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
