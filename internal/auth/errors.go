package auth

import (
	"fmt"

	"github.com/Andrew920528/vibe-30/internal/model"
)

var (
	// ErrMissingToken is returned when the Authorization header is absent.
	ErrMissingToken = fmt.Errorf("%w: missing bearer token", model.ErrUnauthenticated)

	// ErrInvalidToken wraps parsing and validation failures.
	ErrInvalidToken = fmt.Errorf("%w: invalid bearer token", model.ErrUnauthenticated)
)
