// Package handlers exposes the HTTP surface: decks, items, review sessions,
// and generation jobs.
package handlers

import (
	"encoding/json"
	"net/http"

	"gorm.io/gorm"

	"github.com/owenfield/recall-api/apperr"
	"github.com/owenfield/recall-api/jobs"
	"github.com/owenfield/recall-api/session"
)

type DBHandler struct {
	*gorm.DB
	Sessions   *session.Service
	Queue      *jobs.Queue
	Dispatcher *jobs.Dispatcher
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError maps application errors onto status codes and a JSON body with
// the error code and any details (e.g. capacity counts).
func writeError(w http.ResponseWriter, err error) {
	if aErr, ok := err.(*apperr.Error); ok {
		writeJSON(w, aErr.Status, map[string]any{
			"code":    aErr.Code,
			"message": aErr.Message,
			"details": aErr.Details,
		})
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
