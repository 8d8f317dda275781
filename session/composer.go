package session

import (
	"context"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/owenfield/recall-api/apperr"
	"github.com/owenfield/recall-api/models"
	"github.com/owenfield/recall-api/srs"
)

// ItemView is one session card as served to a client.
type ItemView struct {
	PublicID    string    `json:"public_id"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Subtype     string    `json:"subtype"`
	Distractors []string  `json:"distractors,omitempty"`
	Stage       srs.Stage `json:"stage"`
	Due         time.Time `json:"due"`
}

// Resume carries the state of an interrupted session so a client can pick it
// back up. The service does not persist it; it is client-supplied input.
type Resume struct {
	SessionID      string     `json:"session_id"`
	CurrentIndex   int        `json:"current_index"`
	Responses      int        `json:"responses"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	TimeRemaining  *int       `json:"time_remaining,omitempty"` // seconds
	Score          *float64   `json:"score,omitempty"`
}

// SessionView is the ordered due subset of a deck for one review session.
type SessionView struct {
	SessionID    string        `json:"session_id"`
	DeckID       string        `json:"deck_id"`
	Mode         srs.StudyMode `json:"mode"`
	Items        []ItemView    `json:"items"`
	Total        int           `json:"total"`
	NothingDue   bool          `json:"nothing_due"`
	CurrentIndex int           `json:"current_index"`
	Responses    int           `json:"responses"`
	StartedAt    time.Time     `json:"started_at"`
}

// ChangeSet reports how a deck diverged from a session's original card set.
type ChangeSet struct {
	AddedItems     []ItemView `json:"added_items"`
	RemovedItemIDs []string   `json:"removed_item_ids"`
	HasChanges     bool       `json:"has_changes"`
}

// StartSession selects the deck's due items, earliest due first (ties broken
// by item creation order), for a new or resumed session. An empty due set is
// reported through NothingDue, not an error.
func (s *Service) StartSession(ctx context.Context, deckPublicID string, userID uint, mode srs.StudyMode, resume *Resume) (*SessionView, error) {
	if !mode.IsValid() {
		return nil, apperr.NewInvalidRequest("unknown study mode: " + string(mode))
	}

	deck, err := s.deckFor(ctx, deckPublicID, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.dueItems(ctx, deck.ID, time.Now())
	if err != nil {
		return nil, err
	}

	view := &SessionView{
		DeckID:     deck.PublicID,
		Mode:       mode,
		Items:      toItemViews(items),
		Total:      len(items),
		NothingDue: len(items) == 0,
		StartedAt:  time.Now(),
	}

	if resume != nil {
		view.SessionID = resume.SessionID
		view.CurrentIndex = resume.CurrentIndex
		view.Responses = resume.Responses
		view.StartedAt = resume.StartedAt
	} else {
		sessionID, err := gonanoid.New()
		if err != nil {
			return nil, apperr.NewInternal(err)
		}
		view.SessionID = sessionID
	}

	return view, nil
}

// DetectChanges reconciles an in-progress session against the deck's current
// membership. Removed items must be dropped from the remainder of the queue;
// added items are surfaced only once they are due. Repeated calls with the
// same original set are idempotent, modulo items crossing their due threshold
// between calls.
func (s *Service) DetectChanges(ctx context.Context, deckPublicID string, userID uint, originalItemIDs []string) (*ChangeSet, error) {
	deck, err := s.deckFor(ctx, deckPublicID, userID)
	if err != nil {
		return nil, err
	}

	var members []models.Item
	err = s.db.WithContext(ctx).
		Joins("JOIN deck_items ON deck_items.item_id = items.id AND deck_items.deck_id = ?", deck.ID).
		Order("items.due ASC, items.created_at ASC, items.id ASC").
		Find(&members).Error
	if err != nil {
		return nil, apperr.NewInternal(err)
	}

	current := make(map[string]bool, len(members))
	for i := range members {
		current[members[i].PublicID] = true
	}
	original := make(map[string]bool, len(originalItemIDs))
	for _, id := range originalItemIDs {
		original[id] = true
	}

	changes := &ChangeSet{RemovedItemIDs: []string{}, AddedItems: []ItemView{}}
	for _, id := range originalItemIDs {
		if !current[id] {
			changes.RemovedItemIDs = append(changes.RemovedItemIDs, id)
		}
	}

	now := time.Now()
	for i := range members {
		m := &members[i]
		if original[m.PublicID] {
			continue
		}
		// New members surface only once the memory model says they are ready.
		if m.Due.After(now) {
			continue
		}
		changes.AddedItems = append(changes.AddedItems, toItemView(m))
	}

	changes.HasChanges = len(changes.AddedItems) > 0 || len(changes.RemovedItemIDs) > 0
	return changes, nil
}

// dueItems returns the deck members with due ≤ now, due ascending, creation
// order breaking ties.
func (s *Service) dueItems(ctx context.Context, deckID uint, now time.Time) ([]models.Item, error) {
	var items []models.Item
	err := s.db.WithContext(ctx).
		Joins("JOIN deck_items ON deck_items.item_id = items.id AND deck_items.deck_id = ?", deckID).
		Where("items.due <= ?", now).
		Order("items.due ASC, items.created_at ASC, items.id ASC").
		Find(&items).Error
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	return items, nil
}

func toItemView(item *models.Item) ItemView {
	return ItemView{
		PublicID:    item.PublicID,
		Question:    item.Question,
		Answer:      item.Answer,
		Subtype:     item.Subtype,
		Distractors: item.Distractors,
		Stage:       item.Stage,
		Due:         item.Due,
	}
}

func toItemViews(items []models.Item) []ItemView {
	views := make([]ItemView, len(items))
	for i := range items {
		views[i] = toItemView(&items[i])
	}
	return views
}
