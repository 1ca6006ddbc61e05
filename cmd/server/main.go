package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rrens/chat-assistant/internal/api"
	"github.com/Rrens/chat-assistant/internal/api/handler"
	"github.com/Rrens/chat-assistant/internal/config"
	"github.com/Rrens/chat-assistant/internal/llm"
	"github.com/Rrens/chat-assistant/internal/llm/anthropic"
	"github.com/Rrens/chat-assistant/internal/llm/deepseek"
	"github.com/Rrens/chat-assistant/internal/llm/gemini"
	"github.com/Rrens/chat-assistant/internal/llm/ollama"
	"github.com/Rrens/chat-assistant/internal/llm/openai"
	"github.com/Rrens/chat-assistant/internal/logger"
	"github.com/Rrens/chat-assistant/internal/repository/mongo"
	"github.com/Rrens/chat-assistant/internal/repository/postgres"
	"github.com/Rrens/chat-assistant/internal/repository/redis"
	"github.com/Rrens/chat-assistant/internal/repository/sqlite"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logger.Setup(cfg.Logging, os.Getenv("ENV") == "production")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("document_store", cfg.DocumentStore.Driver).
		Msg("Starting chat assistant API server")

	ctx := context.Background()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	ready := map[string]handler.PingFunc{"postgres": db.Ping}

	deps := api.Dependencies{
		Users: postgres.NewUserRepository(db),
	}

	// Conversation store
	switch cfg.DocumentStore.Driver {
	case "postgres":
		deps.Conversations = postgres.NewConversationRepository(db)
		deps.Guests = postgres.NewGuestConversationRepository(db)
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.DocumentStore.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite store")
		}
		defer store.Close()

		deps.Conversations = sqlite.NewConversationRepository(store)
		deps.Guests = sqlite.NewGuestConversationRepository(store)
		ready["sqlite"] = store.Ping
	case "mongo", "":
		store, err := mongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer store.Close(context.Background())

		if err := store.EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to create MongoDB indexes")
		}

		deps.Conversations = mongo.NewConversationRepository(store)
		deps.Guests = mongo.NewGuestConversationRepository(store)
		ready["mongo"] = store.Ping
	default:
		log.Fatal().Str("driver", cfg.DocumentStore.Driver).Msg("Unknown document store driver")
	}

	// Redis is optional, without it idempotency keys are ignored
	if cfg.Redis.Enabled() {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		deps.Claims = redis.NewClaimStore(redisClient, cfg.Redis.ClaimTTL)
		ready["redis"] = redisClient.Ping
	} else {
		log.Warn().Msg("Redis host is empty, idempotency keys are disabled")
	}

	provider, err := newLLMRouter(cfg.LLM).GetProvider("")
	if err != nil {
		log.Fatal().Err(err).Msg("No usable LLM provider")
	}
	log.Info().Str("provider", provider.Name()).Str("model", provider.DefaultModel()).Msg("LLM provider selected")
	deps.Provider = provider
	deps.Ready = ready

	router := api.NewRouter(cfg, deps)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// newLLMRouter registers every provider that has credentials configured
func newLLMRouter(cfg config.LLMConfig) *llm.Router {
	router := llm.NewRouter(cfg.DefaultProvider)

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.DefaultProvider)

	if cfg.Ollama.Host != "" {
		log.Info().Str("host", cfg.Ollama.Host).Msg("Registering Ollama provider")
		router.RegisterProvider(ollama.NewProvider(cfg.Ollama.Host, cfg.Ollama.DefaultModel))
	}
	if cfg.OpenAI.APIKey != "" {
		router.RegisterProvider(openai.NewProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model))
	}
	if cfg.Anthropic.APIKey != "" {
		router.RegisterProvider(anthropic.NewProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.RegisterProvider(deepseek.NewProvider(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model))
	}
	if cfg.Gemini.APIKey != "" {
		router.RegisterProvider(gemini.NewProvider(cfg.Gemini))
	}

	for _, name := range router.ListProviders() {
		log.Debug().Str("provider", name).Msg("LLM provider registered")
	}

	return router
}
