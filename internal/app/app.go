package app

import (
	"context"
	"log/slog"

	httpapp "budgetauth/internal/app/http"
	"budgetauth/internal/config"
	httptransport "budgetauth/internal/http"
	"budgetauth/internal/http/handler"
	"budgetauth/internal/lib/mailer"
	"budgetauth/internal/ratelimit"
	"budgetauth/internal/services/auth"
	"budgetauth/internal/services/cleanup"
	"budgetauth/internal/storage/mongodb"
	"budgetauth/internal/storage/sqlite"
)

// Storage is the full persistence surface the services need; both the sqlite
// and mongodb backends satisfy it.
type Storage interface {
	auth.UserSaver
	auth.UserProvider
	auth.UserMutator
	auth.TokenLedger
	cleanup.TokenSweeper
}

type App struct {
	HTTPSrv *httpapp.App
	Sweeper *cleanup.Sweeper
}

func New(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
) *App {
	store := newStorage(ctx, cfg)

	redisClient, err := ratelimit.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		panic(err)
	}
	gate := ratelimit.New(redisClient, cfg.RateLimit.Window, cfg.RateLimit.Limit)

	var m mailer.Mailer
	if cfg.SMTP.Addr != "" {
		m = mailer.NewSMTP(cfg.SMTP.Addr, cfg.SMTP.From, cfg.SMTP.Password)
	} else {
		m = mailer.NewLog(logger)
	}

	authService := auth.New(
		logger,
		store,
		store,
		store,
		store,
		gate,
		m,
		auth.TokenConfig{
			AccessSecret:  cfg.Tokens.AccessSecret,
			RefreshSecret: cfg.Tokens.RefreshSecret,
			AccessTTL:     cfg.Tokens.AccessTTL,
			RefreshTTL:    cfg.Tokens.RefreshTTL,
			ResetTTL:      cfg.Tokens.ResetTTL,
		},
		cfg.SMTP.FrontendURL,
	)

	sweeper := cleanup.New(logger, store, cfg.Cleanup.Interval, cfg.Tokens.AccessTTL)

	authHandler := handler.NewAuthHandler(authService, sweeper)
	router := httptransport.NewRouter(logger, authHandler, cfg.Tokens.AccessSecret, cfg.CORS.AllowedOrigins)

	httpApp := httpapp.New(logger, router, cfg.HTTP.Port, cfg.HTTP.Timeout)

	return &App{
		HTTPSrv: httpApp,
		Sweeper: sweeper,
	}
}

func newStorage(ctx context.Context, cfg *config.Config) Storage {
	switch cfg.Storage.Backend {
	case "mongo":
		store, err := mongodb.New(ctx, cfg.Storage.Mongo.URI, cfg.Storage.Mongo.Database)
		if err != nil {
			panic(err)
		}
		return store
	default:
		store, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			panic(err)
		}
		return store
	}
}
