package api

import "net/http"

// authMiddleware compares the Authorization header against a static
// configured string on every request, matching the original's
// `middlewares/auth.rs` (completed here instead of left unauthenticated
// by omission).
func authMiddleware(authorization string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("Authorization")
			if got == "" {
				writeError(w, missingHeader("Authorization"))
				return
			}
			if got != authorization {
				writeError(w, unauthorized())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
