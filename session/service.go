// Package session composes review sessions over a deck's due items,
// reconciles in-progress sessions against concurrent deck edits, and owns the
// sole write path for item memory state.
package session

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/owenfield/recall-api/apperr"
	"github.com/owenfield/recall-api/models"
	"github.com/owenfield/recall-api/srs"
)

// Service wires the memory engine to deck and item persistence.
type Service struct {
	db             *gorm.DB
	engine         *srs.Engine
	goodResponseMs int
}

// NewService creates a Service. goodResponseMs ≤ 0 falls back to the srs
// package default.
func NewService(db *gorm.DB, engine *srs.Engine, goodResponseMs int) *Service {
	if goodResponseMs <= 0 {
		goodResponseMs = srs.DefaultGoodResponseMs
	}
	return &Service{db: db, engine: engine, goodResponseMs: goodResponseMs}
}

// Engine exposes the memory engine for read-only queries (retrievability,
// per-rating previews).
func (s *Service) Engine() *srs.Engine {
	return s.engine
}

// deckFor loads a deck by public ID and verifies ownership.
func (s *Service) deckFor(ctx context.Context, deckPublicID string, userID uint) (*models.Deck, error) {
	var deck models.Deck
	err := s.db.WithContext(ctx).Where("public_id = ?", deckPublicID).First(&deck).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NewNotFound("deck", deckPublicID)
	}
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	if deck.UserID != userID {
		return nil, apperr.NewForbidden()
	}
	return &deck, nil
}

// itemFor loads an item by public ID and verifies ownership.
func (s *Service) itemFor(ctx context.Context, itemPublicID string, userID uint) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).Where("public_id = ?", itemPublicID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NewNotFound("item", itemPublicID)
	}
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	if item.UserID != userID {
		return nil, apperr.NewForbidden()
	}
	return &item, nil
}

// Item returns an owned item by public ID.
func (s *Service) Item(ctx context.Context, itemPublicID string, userID uint) (*models.Item, error) {
	return s.itemFor(ctx, itemPublicID, userID)
}

// SetDistractors replaces an item's distractor set and marks it
// multiple-choice. Used by the distractor backfill job; memory state is
// untouched.
func (s *Service) SetDistractors(ctx context.Context, itemPublicID string, userID uint, distractors []string) error {
	item, err := s.itemFor(ctx, itemPublicID, userID)
	if err != nil {
		return err
	}
	// Column-targeted update so a concurrent rate call's memory-state write
	// is never clobbered.
	err = s.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ?", item.ID).
		Select("Distractors", "Subtype").
		Updates(models.Item{Distractors: distractors, Subtype: models.SubtypeMultipleChoice}).Error
	if err != nil {
		return apperr.NewInternal(err)
	}
	return nil
}

// mapSRSError converts srs sentinel errors into application errors.
func mapSRSError(err error) error {
	switch {
	case errors.Is(err, srs.ErrInvalidRating):
		return &apperr.Error{Code: apperr.CodeInvalidRating, Status: 400, Message: err.Error()}
	case errors.Is(err, srs.ErrInvalidState):
		return &apperr.Error{Code: apperr.CodeInvalidState, Status: 400, Message: err.Error()}
	case errors.Is(err, srs.ErrInvalidOutcome):
		return &apperr.Error{Code: apperr.CodeInvalidOutcome, Status: 400, Message: err.Error()}
	default:
		return apperr.NewInternal(err)
	}
}
