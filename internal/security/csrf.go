package security

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// CSRF guards cookie-authenticated flows with the double-submit pattern.
// Bearer-token requests pass through untouched since the register talks to
// the API with JWTs, not cookies.
type CSRF struct {
	Header string
}

func (c CSRF) headerName() string {
	if name := strings.TrimSpace(c.Header); name != "" {
		return name
	}
	return "X-CSRF-Token"
}

// Middleware requires a token header matching the cookie of the same name on
// every state-changing request.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	headerName := c.headerName()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}

		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(headerName))
		if token == "" {
			http.Error(w, "missing csrf token", http.StatusForbidden)
			return
		}
		cookie, err := r.Cookie(headerName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			http.Error(w, "missing csrf cookie", http.StatusForbidden)
			return
		}
		if !tokensMatch(token, cookie.Value) {
			http.Error(w, "invalid csrf token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokensMatch(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
