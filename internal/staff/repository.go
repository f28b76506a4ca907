package staff

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("staff user not found")

type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type Repository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	Upsert(ctx context.Context, username, passwordHash string) (*User, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM staff_users
		WHERE username = $1
	`, username)
	return scanUser(row)
}

func (r *PgRepository) Upsert(ctx context.Context, username, passwordHash string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO staff_users (id, username, password_hash, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash
		RETURNING id, username, password_hash, created_at
	`, uuid.New(), username, passwordHash)
	return scanUser(row)
}
