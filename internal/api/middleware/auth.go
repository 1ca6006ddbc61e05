package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Rrens/chat-assistant/internal/api/response"
	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/google/uuid"
)

type contextKey string

const UserIDKey contextKey = "userID"

// Verifier resolves an Authorization header to a user ID
type Verifier interface {
	Verify(header string) (uuid.UUID, error)
}

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	verifier Verifier
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(verifier Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate rejects the request with 401 unless it carries a valid bearer token
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.verifier.Verify(r.Header.Get("Authorization"))
		if err != nil {
			message := "unauthorized"
			var authErr *domain.AuthError
			if errors.As(err, &authErr) {
				message = string(authErr.Reason)
			}
			response.Unauthorized(w, message)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID gets the user ID from context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// WithUserID returns a copy of ctx carrying userID
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
