package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig holds HS256 verification parameters.
type JWTConfig struct {
	Secret string
	Issuer string
}

// JWTAuthenticator verifies HS256 tokens issued by the identity provider.
// The subject claim is the user id.
type JWTAuthenticator struct {
	cfg JWTConfig
}

func NewJWTAuthenticator(cfg JWTConfig) *JWTAuthenticator { return &JWTAuthenticator{cfg: cfg} }

func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.cfg.Secret), nil
	},
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Principal{UserID: claims.Subject, Method: "jwt"}, nil
}

// IssueToken signs a token for subject. Used by tooling and tests; the
// production issuer is the external identity provider.
func IssueToken(cfg JWTConfig, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return tok.SignedString([]byte(cfg.Secret))
}
