package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jonathan/smartapply/internal/db"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &ErrValidation{Field: "max_pages_gozambia", Message: "must be a non-negative integer"}, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("bad request: %w", &ErrValidation{Field: "id"}), http.StatusBadRequest},
		{"run not found", &ErrRunNotFound{RunID: "abc"}, http.StatusNotFound},
		{"timeout", fmt.Errorf("pipeline: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"persistence", &db.PersistenceError{Op: "list users", Cause: errors.New("refused")}, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "validation error: max_pages_gozambia - must be a non-negative integer",
		(&ErrValidation{Field: "max_pages_gozambia", Message: "must be a non-negative integer"}).Error())
	assert.Equal(t, "pipeline run not found: abc", (&ErrRunNotFound{RunID: "abc"}).Error())
}
