package main

import (
	"context"
	"os"

	"github.com/Rrens/chat-assistant/internal/config"
	"github.com/Rrens/chat-assistant/internal/logger"
	"github.com/Rrens/chat-assistant/internal/repository/mongo"
	"github.com/Rrens/chat-assistant/internal/repository/postgres"
	"github.com/Rrens/chat-assistant/internal/repository/sqlite"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if _, err := logger.Setup(cfg.Logging, false); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	source := os.Getenv("MIGRATIONS_SOURCE")
	if source == "" {
		source = "file://migrations"
	}

	log.Info().Str("host", cfg.Database.Host).Int("port", cfg.Database.Port).Msg("Migrating user database")
	if err := postgres.RunMigrations(cfg.Database.DSN(), source); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate user database")
	}

	ctx := context.Background()

	switch cfg.DocumentStore.Driver {
	case "postgres":
		// conversation tables come with the SQL migrations above
	case "sqlite":
		// Open creates the schema
		store, err := sqlite.Open(ctx, cfg.DocumentStore.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare SQLite store")
		}
		store.Close()
	default:
		store, err := mongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer store.Close(ctx)

		if err := store.EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to create MongoDB indexes")
		}
	}

	log.Info().Msg("Migrations complete")
}
