package api

import (
	"net/http"

	"github.com/Rrens/chat-assistant/internal/api/handler"
	customMiddleware "github.com/Rrens/chat-assistant/internal/api/middleware"
	"github.com/Rrens/chat-assistant/internal/config"
	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/Rrens/chat-assistant/internal/llm"
	"github.com/Rrens/chat-assistant/internal/security"
	"github.com/Rrens/chat-assistant/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Dependencies are the storage and model backends the API is built on.
// Claims may be nil.
type Dependencies struct {
	Users         domain.UserRepository
	Conversations domain.ConversationStore
	Guests        domain.GuestConversationStore
	Claims        domain.ClaimStore
	Provider      llm.Provider
	Ready         map[string]handler.PingFunc
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handler.IdempotencyKeyHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	jwtManager := security.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	// Initialize services
	authService := service.NewAuthService(deps.Users, jwtManager)
	chatService := service.NewChatService(deps.Conversations, deps.Guests, deps.Provider, deps.Claims, cfg.Chat)
	conversationService := service.NewConversationService(deps.Conversations)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	conversationHandler := handler.NewConversationHandler(conversationService)

	authMiddleware := customMiddleware.NewAuthMiddleware(service.NewIdentityVerifier(jwtManager))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.Ready))

		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})

		r.Post("/chat/guest", chatHandler.Guest)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/chat/auth", chatHandler.Auth)

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", conversationHandler.List)
				r.Post("/", conversationHandler.Create)
				r.Get("/search/{query}", conversationHandler.Search)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", conversationHandler.Get)
					r.Put("/", conversationHandler.Rename)
					r.Delete("/", conversationHandler.Delete)
				})
			})
		})
	})

	return r
}
