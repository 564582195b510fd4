package errors

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		status   int
		category ErrorCategory
		sentinel error
	}{
		{http.StatusBadRequest, Irrecoverable, ErrValidation},
		{http.StatusUnauthorized, Irrecoverable, ErrUnauthenticated},
		{http.StatusNotFound, Irrecoverable, ErrNotFound},
		{http.StatusUnprocessableEntity, Irrecoverable, ErrNoActivities},
		{http.StatusTooManyRequests, Recoverable, nil},
		{http.StatusInternalServerError, Recoverable, ErrUnavailable},
	}
	for _, tc := range cases {
		err := NewHTTPError(tc.status, []byte(`{"error":"x","code":0,"message":"name is required"}`), "create bucket")
		assert.Equal(t, tc.category, err.Category, "status %d", tc.status)
		assert.Equal(t, tc.category == Irrecoverable, IsIrrecoverable(err))
		if tc.sentinel != nil {
			assert.ErrorIs(t, err, tc.sentinel)
		}
		assert.Contains(t, err.Error(), "name is required")
	}
}

func TestNetworkErrorIsRecoverable(t *testing.T) {
	err := NewNetworkError("list buckets", io.ErrUnexpectedEOF)
	assert.False(t, IsIrrecoverable(err))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "Recoverable", err.Category.String())
}
