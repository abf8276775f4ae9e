package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// Error names used in the response envelope, one per failure class.
const (
	errValidation = "ValidationError"
	errNotFound   = "NotFoundError"
	errAuth       = "AuthError"
	errProtocol   = "ProtocolError"
	errConfig     = "ConfigError"
	errInternal   = "InternalError"
)

// APIResponse is the JSON envelope every non-binary response uses.
type APIResponse struct {
	Error   *string     `json:"error"`
	Message string      `json:"message"`
	Result  interface{} `json:"result"`
}

func writeJSONError(w http.ResponseWriter, statusCode int, errorName string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Error:   &errorName,
		Message: message,
		Result:  nil,
	})
}

func writeJSONSuccess(w http.ResponseWriter, message string, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Error:   nil,
		Message: message,
		Result:  result,
	})
}

func logAndWriteJSONError(w http.ResponseWriter, requestID string, statusCode int, errorName string, message string, err error) {
	if err != nil {
		log.Printf("[RequestID: %s] %s: %v", requestID, message, err)
	} else {
		log.Printf("[RequestID: %s] %s", requestID, message)
	}
	writeJSONError(w, statusCode, errorName, message)
}
