package auth

import (
	"context"
	"fmt"

	"github.com/Andrew920528/vibe-30/internal/config"
)

// Principal is the authenticated owner of a request.
type Principal struct {
	UserID string `json:"userId"`
	Method string `json:"method"` // "jwt" or "dev"
}

// Authenticator resolves a bearer token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// NewAuthenticator picks the authenticator for cfg.AuthMode.
func NewAuthenticator(cfg *config.Config) (Authenticator, error) {
	switch cfg.AuthMode {
	case config.AuthJWT:
		return NewJWTAuthenticator(JWTConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}), nil
	case config.AuthDev:
		return NewDevAuthenticator(), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}
