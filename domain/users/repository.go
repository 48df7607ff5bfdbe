package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"github.com/ai4kg/server/pkg/apperror"
	"github.com/ai4kg/server/pkg/logger"
)

// Store is the persistence surface the user service depends on.
type Store interface {
	Create(ctx context.Context, u *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// Repository persists user accounts.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a user repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("users.repository")),
	}
}

var _ Store = (*Repository)(nil)

// Create inserts a new user. Username and email collisions surface as
// conflicts.
func (r *Repository) Create(ctx context.Context, u *User) error {
	_, err := r.db.NewInsert().Model(u).Returning("*").Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewConflict("username or email already registered")
		}
		return apperror.ErrDatabase.WithInternal(fmt.Errorf("insert user: %w", err))
	}
	return nil
}

// GetByUsername fetches a user by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	u := new(User)
	err := r.db.NewSelect().Model(u).Where("u.username = ?", username).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user", username)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(fmt.Errorf("get user by username: %w", err))
	}
	return u, nil
}

// GetByID fetches a user by primary key.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u := new(User)
	err := r.db.NewSelect().Model(u).Where("u.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user", id.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(fmt.Errorf("get user by id: %w", err))
	}
	return u, nil
}
