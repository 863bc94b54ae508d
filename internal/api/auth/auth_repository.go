package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quantleap/brokerage/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo is the credential store boundary.
type AuthRepo interface {
	CreateUser(ctx context.Context, email, username, hashedPassword string) (*types.UserAuth, error)
	GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error)
	GetUserByUsername(ctx context.Context, username string) (*types.UserAuth, error)
	GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error)
}

// PGXPool is the subset of pgxpool.Pool the repository uses. pgxmock
// satisfies it in tests.
type PGXPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresAuthRepo(pgpool PGXPool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// uniqueViolation is the Postgres error code raised when an insert loses the
// race against the users_email_key/users_username_key indexes.
const uniqueViolation = "23505"

// CreateUser inserts a new user and returns the stored record. A duplicate
// email or username surfaces as ErrConflict, not a generic failure, because
// the unique index is the actual enforcement boundary for concurrent signups.
func (r *PostgresAuthRepo) CreateUser(ctx context.Context, email, username, hashedPassword string) (*types.UserAuth, error) {
	var user types.UserAuth
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash)
         VALUES ($1, $2, $3)
         RETURNING id, email, username, password_hash, created_at, updated_at`,
		email, username, hashedPassword).
		Scan(&user.ID, &user.Email, &user.Username, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("user already exists: %w", ErrConflict)
		}
		return nil, fmt.Errorf("create user: db insert failed: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	var user types.UserAuth
	err := r.pgpool.QueryRow(ctx,
		"SELECT id, email, username, password_hash, created_at, updated_at FROM users WHERE email = $1",
		email).
		Scan(&user.ID, &user.Email, &user.Username, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: query failed: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) GetUserByUsername(ctx context.Context, username string) (*types.UserAuth, error) {
	var user types.UserAuth
	err := r.pgpool.QueryRow(ctx,
		"SELECT id, email, username, password_hash, created_at, updated_at FROM users WHERE username = $1",
		username).
		Scan(&user.ID, &user.Email, &user.Username, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by username: query failed: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error) {
	var user types.UserAuth
	err := r.pgpool.QueryRow(ctx,
		"SELECT id, email, username, password_hash, created_at, updated_at FROM users WHERE id = $1",
		userID).
		Scan(&user.ID, &user.Email, &user.Username, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: query failed: %w", err)
	}
	return &user, nil
}
