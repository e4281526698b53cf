package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth guards the API with a static key. Clients present it either as
// `Authorization: Bearer <key>` or in the X-API-Key header. An empty
// configured key disables the check entirely.
func Auth(apiKey string) func(http.Handler) http.Handler {
	enabled := apiKey != ""
	want := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			got := requestToken(r)
			if got == "" {
				deny(w, "missing authentication token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				deny(w, "invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, rest, found := strings.Cut(auth, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func deny(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
