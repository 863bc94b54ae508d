package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userColumnsSQL = "id, email, username, password_hash, created_at, updated_at"

func userRow(id, email, username, hash string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "created_at", "updated_at"}).
		AddRow(id, email, username, hash, now, now)
}

func newMockRepo(t *testing.T) (*PostgresAuthRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPostgresAuthRepo(mockPool, slog.Default()), mockPool
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("INSERT INTO users").
			WithArgs("a@x.com", "a", "hash").
			WillReturnRows(userRow("user123", "a@x.com", "a", "hash"))

		user, err := repo.CreateUser(ctx, "a@x.com", "a", "hash")

		assert.NoError(t, err)
		assert.Equal(t, "user123", user.ID)
		assert.Equal(t, "a@x.com", user.Email)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UniqueViolationBecomesConflict", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("INSERT INTO users").
			WithArgs("a@x.com", "a", "hash").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		_, err := repo.CreateUser(ctx, "a@x.com", "a", "hash")

		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("OtherDBErrorIsNotConflict", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("INSERT INTO users").
			WithArgs("a@x.com", "a", "hash").
			WillReturnError(&pgconn.PgError{Code: "57P01"})

		_, err := repo.CreateUser(ctx, "a@x.com", "a", "hash")

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrConflict)
	})
}

func TestGetUserByEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("SELECT " + userColumnsSQL + " FROM users WHERE email").
			WithArgs("a@x.com").
			WillReturnRows(userRow("user123", "a@x.com", "a", "hash"))

		user, err := repo.GetUserByEmail(ctx, "a@x.com")

		assert.NoError(t, err)
		assert.Equal(t, "a", user.Username)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("SELECT " + userColumnsSQL + " FROM users WHERE email").
			WithArgs("nobody@x.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetUserByEmail(ctx, "nobody@x.com")

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGetUserByUsername(t *testing.T) {
	ctx := context.Background()
	repo, mockPool := newMockRepo(t)

	mockPool.ExpectQuery("SELECT " + userColumnsSQL + " FROM users WHERE username").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetUserByUsername(ctx, "ghost")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUserByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("SELECT " + userColumnsSQL + " FROM users WHERE id").
			WithArgs("user123").
			WillReturnRows(userRow("user123", "a@x.com", "a", "hash"))

		user, err := repo.GetUserByID(ctx, "user123")

		assert.NoError(t, err)
		assert.Equal(t, "a@x.com", user.Email)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		mockPool.ExpectQuery("SELECT " + userColumnsSQL + " FROM users WHERE id").
			WithArgs("ghost").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetUserByID(ctx, "ghost")

		assert.ErrorIs(t, err, ErrNotFound)
	})
}
