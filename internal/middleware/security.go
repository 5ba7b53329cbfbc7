package middleware

import (
	"net/http"
)

// SecurityHeaders adds security-related HTTP headers to responses. The MCP
// endpoints serve JSON and event streams only, so nothing may be framed,
// sniffed or cached.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		next.ServeHTTP(w, r)
	})
}
