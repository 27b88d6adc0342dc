package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"budgetauth/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE users
(
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    username  TEXT NOT NULL UNIQUE,
    email     TEXT NOT NULL UNIQUE,
    pass_hash BLOB NOT NULL,
    currency  TEXT NOT NULL DEFAULT 'EUR'
);
CREATE TABLE tokens
(
    access_token  TEXT PRIMARY KEY,
    user_id       INTEGER NOT NULL,
    refresh_token TEXT NOT NULL,
    status        BOOLEAN NOT NULL DEFAULT 1,
    created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestSaveAndGetUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.SaveUser(ctx, "alice", "alice@example.com", []byte("hash"), "EUR")
	require.NoError(t, err)
	require.NotZero(t, id)

	user, err := s.User(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, []byte("hash"), user.PassHash)
	assert.Equal(t, "EUR", user.Currency)

	byID, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user, byID)
}

func TestSaveUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, err := s.SaveUser(ctx, "alice", "alice@example.com", []byte("hash"), "EUR")
	require.NoError(t, err)

	_, err = s.SaveUser(ctx, "alice2", "alice@example.com", []byte("hash"), "EUR")
	require.ErrorIs(t, err, storage.ErrUserAlreadyExists)
}

func TestUserNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, err := s.User(ctx, "ghost@example.com")
	require.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = s.UserByID(ctx, 9999)
	require.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUpdateAndDeleteUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.SaveUser(ctx, "bob", "bob@example.com", []byte("hash"), "EUR")
	require.NoError(t, err)

	user, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	user.Username = "bobby"
	user.Currency = "USD"
	require.NoError(t, s.UpdateUser(ctx, user))

	updated, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "bobby", updated.Username)
	assert.Equal(t, "USD", updated.Currency)

	require.NoError(t, s.DeleteUser(ctx, id))
	_, err = s.UserByID(ctx, id)
	require.ErrorIs(t, err, storage.ErrUserNotFound)
	require.ErrorIs(t, s.DeleteUser(ctx, id), storage.ErrUserNotFound)
}

func TestSaveTokenAndLookup(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.SaveToken(ctx, 42, "access-1", "refresh-1"))

	rec, err := s.TokenByAccess(ctx, "access-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.UserID)
	assert.Equal(t, "refresh-1", rec.RefreshToken)
	assert.True(t, rec.Status)
	assert.WithinDuration(t, time.Now().UTC(), rec.CreatedAt, 5*time.Second)
}

func TestSaveTokenDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.SaveToken(ctx, 42, "access-1", "refresh-1"))
	err := s.SaveToken(ctx, 43, "access-1", "refresh-2")
	require.ErrorIs(t, err, storage.ErrTokenAlreadyExists)
}

func TestInvalidateToken(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.SaveToken(ctx, 42, "access-1", "refresh-1"))

	// Wrong user does not match the active record.
	require.ErrorIs(t, s.InvalidateToken(ctx, 43, "access-1"), storage.ErrTokenNotFound)

	require.NoError(t, s.InvalidateToken(ctx, 42, "access-1"))

	rec, err := s.TokenByAccess(ctx, "access-1")
	require.NoError(t, err)
	assert.False(t, rec.Status)

	// Second invalidation finds no active match.
	require.ErrorIs(t, s.InvalidateToken(ctx, 42, "access-1"), storage.ErrTokenNotFound)
}

func TestSweepTokens(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.SaveToken(ctx, 1, "stale", "refresh-stale"))
	require.NoError(t, s.SaveToken(ctx, 2, "fresh", "refresh-fresh"))
	require.NoError(t, s.SaveToken(ctx, 3, "logged-out", "refresh-out"))
	require.NoError(t, s.InvalidateToken(ctx, 3, "logged-out"))

	// Make the first record older than the cutoff.
	_, err := s.db.ExecContext(ctx,
		"UPDATE tokens SET created_at = ? WHERE access_token = 'stale'",
		time.Now().UTC().Add(-2*time.Hour))
	require.NoError(t, err)

	res, err := s.SweepTokens(ctx, time.Now(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Invalidated)
	assert.Equal(t, int64(2), res.Purged) // stale + logged-out

	// Aged-out and logout-invalidated records are gone, fresh one survives.
	_, err = s.TokenByAccess(ctx, "stale")
	require.ErrorIs(t, err, storage.ErrTokenNotFound)
	_, err = s.TokenByAccess(ctx, "logged-out")
	require.ErrorIs(t, err, storage.ErrTokenNotFound)

	rec, err := s.TokenByAccess(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, rec.Status)
}
