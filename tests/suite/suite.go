package suite

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	httptransport "budgetauth/internal/http"
	"budgetauth/internal/http/handler"
	"budgetauth/internal/ratelimit"
	"budgetauth/internal/services/auth"
	"budgetauth/internal/services/cleanup"
	"budgetauth/internal/storage/sqlite"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	AccessSecret  = "test-access-secret"
	RefreshSecret = "test-refresh-secret"
	AccessTTL     = 30 * time.Minute
)

const schema = `
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

// CaptureMailer records the last message instead of delivering it.
type CaptureMailer struct {
	To      string
	Subject string
	Body    string
}

func (m *CaptureMailer) Send(to, subject, htmlBody string) error {
	m.To, m.Subject, m.Body = to, subject, htmlBody
	return nil
}

type Suite struct {
	*testing.T
	Server  *httptest.Server
	Storage *sqlite.Storage
	Mailer  *CaptureMailer
	Sweeper *cleanup.Sweeper
}

// New wires the whole application in-process: temp sqlite storage, a miniredis
// rate-limit gate, a capturing mailer and the real router, served by httptest.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	path := filepath.Join(t.TempDir(), "e2e.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close schema connection: %v", err)
	}

	store, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("failed to init storage: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gate := ratelimit.New(client, time.Hour, 1)

	m := &CaptureMailer{}

	authService := auth.New(logger, store, store, store, store, gate, m, auth.TokenConfig{
		AccessSecret:  AccessSecret,
		RefreshSecret: RefreshSecret,
		AccessTTL:     AccessTTL,
		RefreshTTL:    7 * 24 * time.Hour,
		ResetTTL:      15 * time.Minute,
	}, "http://127.0.0.1:5500")

	sweeper := cleanup.New(logger, store, time.Hour, AccessTTL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	go sweeper.Run(ctx)

	router := httptransport.NewRouter(logger, handler.NewAuthHandler(authService, sweeper), AccessSecret, nil)
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		cancel()
		server.Close()
		_ = client.Close()
		mr.Close()
		_ = store.Close()
	})

	return ctx, &Suite{
		T:       t,
		Server:  server,
		Storage: store,
		Mailer:  m,
		Sweeper: sweeper,
	}
}
