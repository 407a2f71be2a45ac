// Package httpx holds small helpers shared by HTTP handlers.
package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// Error is the body of every non-2xx JSON response.
type Error struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteError writes an Error body.
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	WriteJSON(w, code, Error{Error: errCode, Message: message})
}
