package service

import (
	"strings"

	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/Rrens/chat-assistant/internal/security"
	"github.com/google/uuid"
)

// TokenVerifier validates a signed access token
type TokenVerifier interface {
	ValidateAccessToken(token string) (*security.Claims, error)
}

// IdentityVerifier turns an Authorization header into a user ID
type IdentityVerifier struct {
	tokens TokenVerifier
}

// NewIdentityVerifier creates a new identity verifier
func NewIdentityVerifier(tokens TokenVerifier) *IdentityVerifier {
	return &IdentityVerifier{tokens: tokens}
}

// Verify accepts a header of the form "Bearer <token>" and returns the
// subject of the token. A header without a bearer token is reported as a
// missing token, a token that does not validate as an invalid one.
func (v *IdentityVerifier) Verify(header string) (uuid.UUID, error) {
	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return uuid.Nil, &domain.AuthError{Reason: domain.AuthMissingToken}
	}

	claims, err := v.tokens.ValidateAccessToken(token)
	if err != nil {
		return uuid.Nil, &domain.AuthError{Reason: domain.AuthInvalidToken, Err: err}
	}

	return claims.UserID, nil
}
