package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/owenfield/recall-api/jobs"
	"github.com/owenfield/recall-api/utils"
)

// CreateGenerationJob enqueues a card-generation job and nudges the
// dispatcher. The request returns as soon as the job is queued; clients poll
// the job status surface for the outcome.
func (db *DBHandler) CreateGenerationJob(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	type GenerationRequestData struct {
		DeckID   string `json:"deck_id"`
		Topic    string `json:"topic"`
		Count    int    `json:"count"`
		Subtype  string `json:"subtype"`
		Priority int    `json:"priority"`
	}

	var req GenerationRequestData
	if err := decoder.Decode(&req); err != nil {
		http.Error(w, "Could not decode request", http.StatusBadRequest)
		return
	}
	if req.DeckID == "" || req.Topic == "" {
		http.Error(w, "deck_id and topic are required", http.StatusBadRequest)
		return
	}

	payload := jobs.CardGenerationPayload{
		DeckID:  req.DeckID,
		Topic:   req.Topic,
		Count:   req.Count,
		Subtype: req.Subtype,
	}
	job, err := db.Queue.Create(r.Context(), user.ID, jobs.TypeCardGeneration, payload, req.Priority)
	if err != nil {
		writeError(w, err)
		return
	}

	db.Dispatcher.Kick()

	writeJSON(w, http.StatusAccepted, job)
}

// GetJobByID is the job status-polling surface. It reflects the latest queue
// mutation immediately.
func (db *DBHandler) GetJobByID(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	job, err := db.Queue.Get(r.Context(), r.PathValue("jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if job.UserID != user.ID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, job)
}
