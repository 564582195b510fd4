package client

import (
	"errors"

	clierrors "github.com/Andrew920528/vibe-30/client/internal/errors"
	"github.com/Andrew920528/vibe-30/client/internal/shardqueue"
)

// Re-exported so callers compare against a single symbol with errors.Is.
var (
	ErrValidation      = clierrors.ErrValidation
	ErrUnauthenticated = clierrors.ErrUnauthenticated
	ErrNotFound        = clierrors.ErrNotFound
	ErrNoActivities    = clierrors.ErrNoActivities
	ErrUnavailable     = clierrors.ErrUnavailable
)

// ErrBackPressure is returned when the client's internal shard queue is full.
var ErrBackPressure = shardqueue.ErrQueueFull

// IsBackPressure reports whether err is a back-pressure error.
func IsBackPressure(err error) bool { return errors.Is(err, ErrBackPressure) }

// StatusCode returns the HTTP status behind err, or 0.
func StatusCode(err error) int {
	var ce *clierrors.ClassifiedError
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	return 0
}
