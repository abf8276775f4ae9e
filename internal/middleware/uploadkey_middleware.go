package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// UploadKeyMiddleware gates the operator API behind the same static secret
// the upload endpoint uses. Errors use the standard response envelope.
func UploadKeyMiddleware(expectedKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			providedKey := r.Header.Get("upload-key")
			if providedKey == "" {
				writeEnvelopeError(w, http.StatusBadRequest, "ValidationError", "No upload-key provided")
				return
			}
			if providedKey != expectedKey {
				writeEnvelopeError(w, http.StatusUnauthorized, "AuthError", "Invalid upload key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeEnvelopeError(w http.ResponseWriter, statusCode int, errorName string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   errorName,
		"message": message,
		"result":  nil,
	})
}
