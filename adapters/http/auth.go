package http

import (
	"net/http"
	"strings"

	"github.com/dominhhai/mws-sdk/ports"
)

// NewTokenAuth rejects requests whose token does not match hash. The
// token is read from "Authorization: Bearer" or X-API-Key.
func NewTokenAuth(h ports.Hasher, hash []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="mws"`)
				writeJSON(w, http.StatusUnauthorized, CallResponse{Error: &ErrorDetail{
					Code:    "unauthorized",
					Message: "missing access token",
				}})
				return
			}
			if !h.Compare(hash, token) {
				writeJSON(w, http.StatusUnauthorized, CallResponse{Error: &ErrorDetail{
					Code:    "unauthorized",
					Message: "invalid access token",
				}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.Header.Get("X-API-Key")
}
