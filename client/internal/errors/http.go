package errors

import (
	"encoding/json"
	"fmt"
)

// apiErrorBody mirrors the server's error envelope.
type apiErrorBody struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ClassifyHTTPError determines whether an HTTP failure should be retried:
// 4xx except 408 and 429 is irrecoverable, everything else is recoverable.
func ClassifyHTTPError(statusCode int, body []byte, underlyingErr error) *ClassifiedError {
	var env apiErrorBody
	_ = json.Unmarshal(body, &env)
	return &ClassifiedError{
		Category:   getHTTPErrorCategory(statusCode),
		StatusCode: statusCode,
		Message:    env.Message,
		Underlying: underlyingErr,
	}
}

func getHTTPErrorCategory(statusCode int) ErrorCategory {
	switch {
	case statusCode >= 400 && statusCode < 500:
		switch statusCode {
		case 408, 429:
			return Recoverable
		default:
			return Irrecoverable
		}
	default:
		return Recoverable
	}
}

// NewHTTPError creates a classified error for an unexpected status.
func NewHTTPError(statusCode int, body []byte, operation string) *ClassifiedError {
	return ClassifyHTTPError(statusCode, body, fmt.Errorf("%s failed", operation))
}

// NewNetworkError creates a classified error for transport failures, which
// are always recoverable.
func NewNetworkError(operation string, err error) *ClassifiedError {
	return &ClassifiedError{
		Category:   Recoverable,
		Underlying: fmt.Errorf("%s network error: %w", operation, err),
	}
}
