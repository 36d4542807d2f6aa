package httpapi

import (
	"net/http"
	"strings"
)

const basicRealm = `Basic realm="carpool", charset="UTF-8"`

// NewBasicAuthMiddleware requires Authorization: Basic <email:password> and stores the
// credentials in request context. It does not check them: every service call re-verifies
// the caller against the identity directory.
func NewBasicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				w.Header().Set("WWW-Authenticate", basicRealm)
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header", nil)
				return
			}
			email, password, ok := r.BasicAuth()
			email = strings.TrimSpace(email)
			if !ok || email == "" || password == "" {
				w.Header().Set("WWW-Authenticate", basicRealm)
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "malformed basic credentials", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCredentials(r.Context(), Credentials{Email: email, Password: password})))
		})
	}
}
