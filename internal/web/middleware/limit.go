package middleware

import (
	"encoding/json"
	"net/http"
)

// FileTooLargeMessage is returned with 413 when a request body exceeds the limit.
const FileTooLargeMessage = "File too large"

// BodyLimit caps request bodies at limit bytes. Requests that announce a larger
// Content-Length are rejected up front; streamed bodies fail on read with
// *http.MaxBytesError, which handlers report the same way.
func BodyLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   FileTooLargeMessage,
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
