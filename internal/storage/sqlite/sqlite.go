package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budgetauth/internal/domain/models"
	"budgetauth/internal/storage"

	"github.com/mattn/go-sqlite3"
	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

// New returns a new instance of the Storage.
func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveUser(ctx context.Context, username, email string, passHash []byte, currency string) (int64, error) {
	const op = "storage.sqlite.SaveUser"
	stmt, err := s.db.Prepare("INSERT INTO users (username, email, pass_hash, currency) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()
	result, err := stmt.ExecContext(ctx, username, email, passHash, currency)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return result.LastInsertId()
}

func (s *Storage) User(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.sqlite.User"
	row := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, pass_hash, currency FROM users WHERE email = ?", email)
	return scanUser(row, op)
}

func (s *Storage) UserByID(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.sqlite.UserByID"
	row := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, pass_hash, currency FROM users WHERE id = ?", userID)
	return scanUser(row, op)
}

func scanUser(row *sql.Row, op string) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PassHash, &user.Currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	const op = "storage.sqlite.UpdateUser"
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET username = ?, email = ?, pass_hash = ?, currency = ? WHERE id = ?",
		user.Username, user.Email, user.PassHash, user.Currency, user.ID)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	return nil
}

func (s *Storage) DeleteUser(ctx context.Context, userID int64) error {
	const op = "storage.sqlite.DeleteUser"
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	return nil
}

func (s *Storage) SaveToken(ctx context.Context, userID int64, accessToken, refreshToken string) error {
	const op = "storage.sqlite.SaveToken"
	stmt, err := s.db.Prepare("INSERT INTO tokens (user_id, access_token, refresh_token, status, created_at) VALUES (?, ?, ?, 1, ?)")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()
	_, err = stmt.ExecContext(ctx, userID, accessToken, refreshToken, time.Now().UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%s: %w", op, storage.ErrTokenAlreadyExists)
		}
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%s: %w", op, storage.ErrTokenAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// InvalidateToken flips the active record matching both user and access token to
// invalidated. A missing active match means the token was already logged out,
// already swept, or never issued.
func (s *Storage) InvalidateToken(ctx context.Context, userID int64, accessToken string) error {
	const op = "storage.sqlite.InvalidateToken"
	result, err := s.db.ExecContext(ctx,
		"UPDATE tokens SET status = 0 WHERE user_id = ? AND access_token = ? AND status = 1",
		userID, accessToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
	}
	return nil
}

func (s *Storage) TokenByAccess(ctx context.Context, accessToken string) (*models.TokenRecord, error) {
	const op = "storage.sqlite.TokenByAccess"
	row := s.db.QueryRowContext(ctx,
		"SELECT user_id, access_token, refresh_token, status, created_at FROM tokens WHERE access_token = ?",
		accessToken)
	var rec models.TokenRecord
	err := row.Scan(&rec.UserID, &rec.AccessToken, &rec.RefreshToken, &rec.Status, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &rec, nil
}

// SweepTokens invalidates every active record older than maxAge, then purges all
// invalidated records, including those flipped earlier by logout. The two phases
// commit independently; a failure between them is self-correcting on the next sweep.
func (s *Storage) SweepTokens(ctx context.Context, now time.Time, maxAge time.Duration) (models.SweepResult, error) {
	const op = "storage.sqlite.SweepTokens"
	var res models.SweepResult

	threshold := now.UTC().Add(-maxAge)
	result, err := s.db.ExecContext(ctx,
		"UPDATE tokens SET status = 0 WHERE status = 1 AND created_at < ?", threshold)
	if err != nil {
		return res, fmt.Errorf("%s: invalidate: %w", op, err)
	}
	res.Invalidated, err = result.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	result, err = s.db.ExecContext(ctx, "DELETE FROM tokens WHERE status = 0")
	if err != nil {
		return res, fmt.Errorf("%s: purge: %w", op, err)
	}
	res.Purged, err = result.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}
