package middleware

import (
	"net"
	"net/http"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
)

// ClientIP stores the host part of r.RemoteAddr in the request context with
// efficio.WithClientIP. Forwarding headers are not trusted; run behind a
// proxy that rewrites RemoteAddr if the real client address matters.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if host == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(efficio.WithClientIP(r.Context(), host)))
	})
}
