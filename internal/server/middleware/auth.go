// Package middleware authenticates trigger requests by bearer token.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey struct{}

// ErrNoSubject is returned by GetSubject on unauthenticated requests.
var ErrNoSubject = errors.New("subject not found in request context")

// SubjectFunc resolves a bearer token to the caller it was issued to.
type SubjectFunc func(token string) (string, error)

// AuthMiddleware rejects requests without a valid bearer token and stores
// the caller in the request context.
func AuthMiddleware(resolve SubjectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			subject, err := resolve(token)
			if err != nil || subject == "" {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts "Bearer <token>" with any casing of the scheme.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="smartapply"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// GetSubject returns the authenticated caller of r.
func GetSubject(r *http.Request) (string, error) {
	subject, ok := r.Context().Value(contextKey{}).(string)
	if !ok {
		return "", ErrNoSubject
	}
	return subject, nil
}
