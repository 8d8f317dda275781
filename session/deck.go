package session

import (
	"context"
	"errors"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"

	"github.com/owenfield/recall-api/apperr"
	"github.com/owenfield/recall-api/models"
	"github.com/owenfield/recall-api/srs"
)

// CreateItem persists a new item with fresh (New) memory state and adds it to
// the deck, subject to the deck's capacity bound.
func (s *Service) CreateItem(ctx context.Context, deckPublicID string, userID uint, question, answer, subtype string, distractors []string) (*models.Item, error) {
	if question == "" || answer == "" {
		return nil, apperr.NewInvalidRequest("item requires a question and an answer")
	}
	if subtype == "" {
		subtype = models.SubtypeBasic
	}

	deck, err := s.deckFor(ctx, deckPublicID, userID)
	if err != nil {
		return nil, err
	}

	publicID, err := gonanoid.New()
	if err != nil {
		return nil, apperr.NewInternal(err)
	}

	item := models.Item{
		PublicID:    publicID,
		UserID:      userID,
		Question:    question,
		Answer:      answer,
		Subtype:     subtype,
		Distractors: distractors,
		MemoryState: srs.NewMemoryState(time.Now()),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkCapacity(tx, deck); err != nil {
			return err
		}
		if err := tx.Create(&item).Error; err != nil {
			return apperr.NewInternal(err)
		}
		membership := models.DeckItem{DeckID: deck.ID, ItemID: item.ID}
		if err := tx.Create(&membership).Error; err != nil {
			return apperr.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// AddToDeck adds an existing item to a deck. The capacity bound is enforced
// here, at the point of mutation, never at reconciliation time.
func (s *Service) AddToDeck(ctx context.Context, deckPublicID, itemPublicID string, userID uint) error {
	deck, err := s.deckFor(ctx, deckPublicID, userID)
	if err != nil {
		return err
	}
	item, err := s.itemFor(ctx, itemPublicID, userID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.DeckItem
		err := tx.Where("deck_id = ? AND item_id = ?", deck.ID, item.ID).First(&existing).Error
		if err == nil {
			return apperr.NewConflict("item is already in the deck")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NewInternal(err)
		}

		if err := s.checkCapacity(tx, deck); err != nil {
			return err
		}
		membership := models.DeckItem{DeckID: deck.ID, ItemID: item.ID}
		if err := tx.Create(&membership).Error; err != nil {
			return apperr.NewInternal(err)
		}
		return nil
	})
}

// RemoveFromDeck removes an item's deck membership. The item itself and its
// review history are untouched.
func (s *Service) RemoveFromDeck(ctx context.Context, deckPublicID, itemPublicID string, userID uint) error {
	deck, err := s.deckFor(ctx, deckPublicID, userID)
	if err != nil {
		return err
	}
	item, err := s.itemFor(ctx, itemPublicID, userID)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Where("deck_id = ? AND item_id = ?", deck.ID, item.ID).
		Delete(&models.DeckItem{})
	if res.Error != nil {
		return apperr.NewInternal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("deck membership", itemPublicID)
	}
	return nil
}

// DeleteItem removes an item entirely: memberships and audit history go with
// it in one transaction. Items are never deleted implicitly.
func (s *Service) DeleteItem(ctx context.Context, itemPublicID string, userID uint) error {
	item, err := s.itemFor(ctx, itemPublicID, userID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", item.ID).Delete(&models.DeckItem{}).Error; err != nil {
			return apperr.NewInternal(err)
		}
		if err := tx.Where("item_id = ?", item.ID).Delete(&models.ReviewLog{}).Error; err != nil {
			return apperr.NewInternal(err)
		}
		if err := tx.Unscoped().Delete(&models.Item{}, item.ID).Error; err != nil {
			return apperr.NewInternal(err)
		}
		return nil
	})
}

// DueSummary reports a deck's membership count and how many members are due.
func (s *Service) DueSummary(ctx context.Context, deckPublicID string, userID uint) (total, due int64, err error) {
	deck, err := s.deckFor(ctx, deckPublicID, userID)
	if err != nil {
		return 0, 0, err
	}

	db := s.db.WithContext(ctx)
	if err := db.Model(&models.DeckItem{}).Where("deck_id = ?", deck.ID).Count(&total).Error; err != nil {
		return 0, 0, apperr.NewInternal(err)
	}
	err = db.Model(&models.DeckItem{}).
		Joins("JOIN items ON items.id = deck_items.item_id").
		Where("deck_items.deck_id = ? AND items.due <= ?", deck.ID, time.Now()).
		Count(&due).Error
	if err != nil {
		return 0, 0, apperr.NewInternal(err)
	}
	return total, due, nil
}

// checkCapacity rejects a membership add that would exceed the deck's bound.
func (s *Service) checkCapacity(tx *gorm.DB, deck *models.Deck) error {
	capacity := deck.Capacity
	if capacity <= 0 {
		capacity = models.DefaultDeckCapacity
	}
	var count int64
	if err := tx.Model(&models.DeckItem{}).Where("deck_id = ?", deck.ID).Count(&count).Error; err != nil {
		return apperr.NewInternal(err)
	}
	if int(count) >= capacity {
		return apperr.NewCapacityExceeded(capacity, int(count))
	}
	return nil
}
