package http

import (
	"context"
	"net/http"
	"strings"
)

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RevocationChecker reports whether a raw token has been revoked.
type RevocationChecker interface {
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

// RejectRevoked blocks requests carrying a blacklisted access token. Runs
// before JWT validation, so a logged-out token is refused even while its
// signature is still valid.
func RejectRevoked(checker RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token != "" {
				revoked, err := checker.IsTokenBlacklisted(r.Context(), token)
				if err != nil {
					writeJSON(w, http.StatusInternalServerError, response{
						Error: &errorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"},
					})
					return
				}
				if revoked {
					writeJSON(w, http.StatusUnauthorized, response{
						Error: &errorResponse{Code: "UNAUTHORIZED", Message: "invalid or expired token"},
					})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
