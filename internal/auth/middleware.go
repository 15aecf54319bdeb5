package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// authUserKey is a context key for the authenticated user.
type authUserKey struct{}

// UserFromContext returns the authenticated claims from the request context.
// Returns nil if the request is not authenticated.
func UserFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(authUserKey{}).(*Claims); ok {
		return c
	}
	return nil
}

// OptionalAuth attaches claims to the request context when a valid Bearer
// token is present, and passes the request through unchanged otherwise.
// PartsBin endpoints work anonymously (device identity) so nothing is
// rejected here; handlers that need a role check the context themselves.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if token, ok := strings.CutPrefix(header, "Bearer "); ok {
				if claims, err := tokens.ValidateAccessToken(token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), authUserKey{}, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin validates the request's Bearer token and checks the admin
// role. Shaped to plug into handlers that take a per-request guard.
func RequireAdmin(tokens *TokenService) func(r *http.Request) error {
	return func(r *http.Request) error {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return errors.New("missing bearer token")
		}
		claims, err := tokens.ValidateAccessToken(token)
		if err != nil {
			return errors.New("invalid or expired access token")
		}
		if claims.Role != string(RoleAdmin) {
			return errors.New("admin role required")
		}
		return nil
	}
}
