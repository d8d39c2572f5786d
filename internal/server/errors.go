package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/smartapply/internal/db"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrRunNotFound indicates an unknown pipeline run ID.
type ErrRunNotFound struct {
	RunID string
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("pipeline run not found: %s", e.RunID)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation *ErrValidation
		notFound   *ErrRunNotFound
		persist    *db.PersistenceError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &persist):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
