package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokens maps known tokens to their subject.
func tokens(known map[string]string) SubjectFunc {
	return func(token string) (string, error) {
		subject, ok := known[token]
		if !ok {
			return "", errors.New("invalid token")
		}
		return subject, nil
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	var gotSubject string
	handler := AuthMiddleware(tokens(map[string]string{"good-token": "scheduler"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := GetSubject(r)
		require.NoError(t, err)
		gotSubject = subject
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/run_pipeline", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "scheduler", gotSubject)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	resolve := tokens(map[string]string{"good-token": "scheduler", "anonymous": ""})

	tests := []struct {
		name       string
		authHeader string
	}{
		{name: "missing header", authHeader: ""},
		{name: "missing Bearer prefix", authHeader: "good-token"},
		{name: "only Bearer", authHeader: "Bearer"},
		{name: "extra fields", authHeader: "Bearer good-token extra"},
		{name: "basic scheme", authHeader: "Basic good-token"},
		{name: "unknown token", authHeader: "Bearer not.a.token"},
		{name: "token without subject", authHeader: "Bearer anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := AuthMiddleware(resolve)(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodPost, "/run_pipeline", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.False(t, called, "handler should not be called")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, `Bearer realm="smartapply"`, w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestAuthMiddleware_CaseInsensitiveBearer(t *testing.T) {
	handler := AuthMiddleware(tokens(map[string]string{"good-token": "ops"}))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, prefix := range []string{"bearer", "BeArEr"} {
		req := httptest.NewRequest(http.MethodPost, "/run_pipeline", nil)
		req.Header.Set("Authorization", prefix+" good-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code, prefix)
	}
}

func TestGetSubject_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/runs", nil)

	subject, err := GetSubject(req)
	assert.ErrorIs(t, err, ErrNoSubject)
	assert.Empty(t, subject)
}

func TestGetSubject_OtherKeyIgnored(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req = req.WithContext(context.WithValue(req.Context(), "subject", "ops")) //nolint:staticcheck

	_, err := GetSubject(req)
	assert.ErrorIs(t, err, ErrNoSubject)
}
