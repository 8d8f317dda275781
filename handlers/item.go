package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/owenfield/recall-api/models"
	"github.com/owenfield/recall-api/utils"
)

func (db *DBHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	type ItemRequestData struct {
		Question    string   `json:"question"`
		Answer      string   `json:"answer"`
		Subtype     string   `json:"subtype"`
		Distractors []string `json:"distractors"`
	}

	var req ItemRequestData
	if err := decoder.Decode(&req); err != nil {
		http.Error(w, "Could not decode request", http.StatusBadRequest)
		return
	}

	item, err := db.Sessions.CreateItem(r.Context(), r.PathValue("deckID"), user.ID,
		req.Question, req.Answer, req.Subtype, req.Distractors)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

func (db *DBHandler) GetItemByID(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusOK, item)
}

func (db *DBHandler) GetItemsForDeck(w http.ResponseWriter, r *http.Request) {
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

	var items []models.Item
	err := db.
		Joins("JOIN deck_items ON deck_items.item_id = items.id AND deck_items.deck_id = ?", deck.ID).
		Order("items.created_at ASC, items.id ASC").
		Find(&items).Error
	if err != nil {
		http.Error(w, "Failed to fetch items", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (db *DBHandler) AddItemToDeck(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	err := db.Sessions.AddToDeck(r.Context(), r.PathValue("deckID"), r.PathValue("itemID"), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (db *DBHandler) RemoveItemFromDeck(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	err := db.Sessions.RemoveFromDeck(r.Context(), r.PathValue("deckID"), r.PathValue("itemID"), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (db *DBHandler) DeleteItemByID(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := db.Sessions.DeleteItem(r.Context(), r.PathValue("itemID"), user.ID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetItemHistory returns the item's append-only review audit log.
func (db *DBHandler) GetItemHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	logs, err := db.Sessions.History(r.Context(), r.PathValue("itemID"), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}
