package middleware

import (
	"encoding/json"
	"net/http"
)

// tooLargeBody mirrors the handler package's error envelope.
var tooLargeBody = map[string]map[string]string{
	"error": {"code": "request_too_large", "message": "request body too large"},
}

// NewMaxBodySizeHandler caps request bodies at limit bytes. A declared
// Content-Length over the limit is refused up front; any other body is wrapped
// in http.MaxBytesReader so the decoder in the handler fails once it reads past
// the limit.
func NewMaxBodySizeHandler(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_ = json.NewEncoder(w).Encode(tooLargeBody)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
