package middleware

import (
	"net/http"
	"strings"

	"github.com/zcancio/aide-sub002/internal/auth"
	"github.com/zcancio/aide-sub002/internal/httputil"
)

// Auth validates the bearer token on every request using verifier and
// stores the authenticated user id in the request context. A missing or
// invalid token is rejected before the handler chain runs.
func Auth(verifier auth.JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(strings.TrimPrefix(header, prefix))
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			r = httputil.WithUserID(r, claims.GetUserID())
			next.ServeHTTP(w, r)
		})
	}
}

// TestAuth is a fixed-identity stand-in for Auth, used when no JWKS URL is
// configured (local/dev runs against the mock LLM provider).
func TestAuth(testUserID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = httputil.WithUserID(r, testUserID)
			next.ServeHTTP(w, r)
		})
	}
}
