package handlers

import (
	"encoding/json"
	"net/http"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/owenfield/recall-api/models"
	"github.com/owenfield/recall-api/utils"
)

func (db *DBHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	type DeckRequestData struct {
		Title    string `json:"title"`
		Capacity int    `json:"capacity"`
	}

	var req DeckRequestData
	if err := decoder.Decode(&req); err != nil {
		http.Error(w, "Could not decode request", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "Deck title is required", http.StatusBadRequest)
		return
	}
	if req.Capacity <= 0 {
		req.Capacity = models.DefaultDeckCapacity
	}

	publicID, err := gonanoid.New()
	if err != nil {
		http.Error(w, "Failed to generate ID", http.StatusInternalServerError)
		return
	}

	deck := models.Deck{
		PublicID: publicID,
		Title:    req.Title,
		UserID:   user.ID,
		Capacity: req.Capacity,
	}
	if err := db.Create(&deck).Error; err != nil {
		http.Error(w, "Failed to create deck", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, deck)
}

func (db *DBHandler) GetDeckByID(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	deckID := r.PathValue("deckID")
	var deck models.Deck
	if err := db.Where("public_id = ?", deckID).First(&deck).Error; err != nil {
		http.Error(w, "Deck not found", http.StatusNotFound)
		return
	}
	if deck.UserID != user.ID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, deck)
}

func (db *DBHandler) GetDecksForUser(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var decks []models.Deck
	if err := db.Where("user_id = ?", user.ID).Order("created_at ASC").Find(&decks).Error; err != nil {
		http.Error(w, "Failed to fetch decks", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, decks)
}

func (db *DBHandler) DeleteDeckByID(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	deckID := r.PathValue("deckID")
	var deck models.Deck
	if err := db.Where("public_id = ?", deckID).First(&deck).Error; err != nil {
		http.Error(w, "Deck not found", http.StatusNotFound)
		return
	}
	if deck.UserID != user.ID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	// Memberships go with the deck; items and their history stay.
	if err := db.Where("deck_id = ?", deck.ID).Delete(&models.DeckItem{}).Error; err != nil {
		http.Error(w, "Failed to delete deck memberships", http.StatusInternalServerError)
		return
	}
	if err := db.Delete(&deck).Error; err != nil {
		http.Error(w, "Failed to delete deck", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetDeckSummary reports membership and due counts for a deck.
func (db *DBHandler) GetDeckSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	total, due, err := db.Sessions.DueSummary(r.Context(), r.PathValue("deckID"), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"total": total, "due": due})
}
