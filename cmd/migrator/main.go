package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"budgetauth/internal/config"
	"budgetauth/internal/storage/mongodb"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	var configPath string
	var migrationsPath string
	var seedUser bool
	flag.StringVar(&configPath, "config", "", "path to config file (or use CONFIG_PATH env)")
	flag.StringVar(&migrationsPath, "migrations", "migrations", "path to sqlite migrations directory")
	flag.BoolVar(&seedUser, "seed", false, "seed a test user into the database")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	cfg := config.LoadConfig(configPath)

	switch cfg.Storage.Backend {
	case "mongo":
		migrateMongo(cfg, seedUser)
	default:
		migrateSQLite(cfg, migrationsPath)
	}

	fmt.Println("Database initialization completed successfully")
}

func migrateSQLite(cfg *config.Config, migrationsPath string) {
	log.Println("Applying sqlite migrations...")

	m, err := migrate.New(
		"file://"+migrationsPath,
		"sqlite3://"+cfg.Storage.Path,
	)
	if err != nil {
		log.Fatalf("failed to init migrator: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("No new migrations to apply")
			return
		}
		log.Fatalf("failed to apply migrations: %v", err)
	}

	log.Println("Migrations applied")
}

func migrateMongo(cfg *config.Config, seedUser bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Println("Connecting to MongoDB...")

	storage, err := mongodb.New(ctx, cfg.Storage.Mongo.URI, cfg.Storage.Mongo.Database)
	if err != nil {
		log.Fatalf("failed to connect to mongodb: %v", err)
	}
	defer storage.Close(ctx)

	log.Println("MongoDB connected, indexes created successfully")

	if seedUser {
		log.Println("Seeding test user...")

		passHash, err := bcrypt.GenerateFromPassword([]byte("Test-passw0rd"), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash seed password: %v", err)
		}
		if err := storage.SeedUser(ctx, 1, "test", "test@example.com", passHash); err != nil {
			log.Fatalf("failed to seed test user: %v", err)
		}
		log.Println("Test user seeded (id=1, email=test@example.com)")
	}
}
