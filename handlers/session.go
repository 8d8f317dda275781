package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/owenfield/recall-api/session"
	"github.com/owenfield/recall-api/srs"
	"github.com/owenfield/recall-api/utils"
)

// StartSession composes the due subset of a deck for review. An optional
// resume block lets a client pick an interrupted session back up.
func (db *DBHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	type SessionRequestData struct {
		Mode   srs.StudyMode   `json:"mode"`
		Resume *session.Resume `json:"resume,omitempty"`
	}

	var req SessionRequestData
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Could not decode request", http.StatusBadRequest)
		return
	}

	view, err := db.Sessions.StartSession(r.Context(), r.PathValue("deckID"), user.ID, req.Mode, req.Resume)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// DetectChanges reconciles an in-progress session against deck edits.
func (db *DBHandler) DetectChanges(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	type ChangesRequestData struct {
		OriginalItemIDs []string `json:"original_item_ids"`
	}

	var req ChangesRequestData
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Could not decode request", http.StatusBadRequest)
		return
	}

	changes, err := db.Sessions.DetectChanges(r.Context(), r.PathValue("deckID"), user.ID, req.OriginalItemIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, changes)
}

// RateItem applies a review outcome to an item and returns the updated
// memory state.
func (db *DBHandler) RateItem(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	type RateRequestData struct {
		Mode    srs.StudyMode `json:"mode"`
		Outcome srs.Outcome   `json:"outcome"`
	}

	var req RateRequestData
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Could not decode request", http.StatusBadRequest)
		return
	}

	state, err := db.Sessions.Rate(r.Context(), r.PathValue("itemID"), user.ID, req.Mode, req.Outcome)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// PreviewItem shows what each rating would do to an item's schedule.
func (db *DBHandler) PreviewItem(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	item, err := db.Sessions.Item(r.Context(), r.PathValue("itemID"), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	preview, err := db.Sessions.Engine().Preview(item.MemoryState, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make(map[string]srs.MemoryState, len(preview))
	for rating, state := range preview {
		out[rating.String()] = state
	}
	writeJSON(w, http.StatusOK, out)
}
