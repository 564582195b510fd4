package auth

import "context"

const (
	// LocalDevAPIKey is the fixed bearer token accepted in dev mode.
	// It is intentionally obvious and must never reach production.
	LocalDevAPIKey = "LOCAL_DEV_MODE_NOT_FOR_PRODUCTION"

	// DevUserID owns every bucket created through the dev key.
	DevUserID = "vibe30-dev"
)

// DevAuthenticator accepts only LocalDevAPIKey.
type DevAuthenticator struct{}

func NewDevAuthenticator() *DevAuthenticator { return &DevAuthenticator{} }

func (DevAuthenticator) Authenticate(_ context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if token != LocalDevAPIKey {
		return nil, ErrInvalidToken
	}
	return &Principal{UserID: DevUserID, Method: "dev"}, nil
}
