package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuthMiddleware requires every request to carry a matching
// `Authorization: Bearer <token>` header. Auth itself is named in spec.md §3
// as an external collaborator (interface only); this is the narrowest
// possible stand-in — a constant-time token compare, adapted from the
// teacher's HMAC-signature-comparison idiom in its admin session cookie
// handling, generalized from "compare a signature" to "compare a token".
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, prefix) {
				RecordConnectionRejected("invalid_hello")
				writeError(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			presented := strings.TrimPrefix(header, prefix)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				RecordConnectionRejected("invalid_hello")
				writeError(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
