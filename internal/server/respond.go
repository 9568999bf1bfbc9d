package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

type envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *errorBody `json:"error,omitempty"`
	Timestamp string     `json:"timestamp"`
}

type errorBody struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("Encoding response: %v", err)
	}
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Timestamp: now()})
}

func writeError(w http.ResponseWriter, code int, message string) {
	ts := now()
	writeJSON(w, code, envelope{Error: &errorBody{Message: message, Timestamp: ts}, Timestamp: ts})
}
