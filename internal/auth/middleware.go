package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/Andrew920528/vibe-30/internal/api/respond"
)

type contextKey string

const principalKey contextKey = "vibe30-principal"

// Skipper lets requests bypass authentication (health, metrics).
type Skipper func(r *http.Request) bool

// ExtractBearer returns the token from "Authorization: Bearer <token>".
func ExtractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// Middleware authenticates every request not skipped and stores the
// principal on the context. Failures answer 401.
func Middleware(authn Authenticator, skip Skipper) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip != nil && skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			token, err := ExtractBearer(r)
			if err != nil {
				respond.WriteUnauthorized(w, err.Error())
				return
			}
			p, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				respond.WriteUnauthorized(w, "invalid credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

// UserID returns the authenticated user id or "" when there is none.
func UserID(ctx context.Context) string {
	if p, ok := FromContext(ctx); ok && p != nil {
		return p.UserID
	}
	return ""
}
