package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	EntityID string `json:"entity_id,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func Error(w http.ResponseWriter, status int, code, message, entityID string) {
	JSON(w, status, ErrorResponse{Error: message, Code: code, EntityID: entityID})
}
