package session

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/owenfield/recall-api/apperr"
	"github.com/owenfield/recall-api/models"
	"github.com/owenfield/recall-api/srs"
)

// Rate applies one review outcome to an item. It is the sole write path for
// memory state: ownership check, outcome normalization, engine transition,
// then a compare-and-set state write plus the audit append in one transaction.
// Validation failures abort with no state written.
func (s *Service) Rate(ctx context.Context, itemPublicID string, userID uint, mode srs.StudyMode, outcome srs.Outcome) (srs.MemoryState, error) {
	item, err := s.itemFor(ctx, itemPublicID, userID)
	if err != nil {
		return srs.MemoryState{}, err
	}

	rating, err := srs.Normalize(mode, outcome, s.goodResponseMs)
	if err != nil {
		return srs.MemoryState{}, mapSRSError(err)
	}

	now := time.Now()
	next, entry, err := s.engine.Transition(item.MemoryState, rating, now)
	if err != nil {
		return srs.MemoryState{}, mapSRSError(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// CAS against the reps/due we read, so two racing rate calls on the
		// same item cannot silently lose an update.
		res := tx.Model(&models.Item{}).
			Where("id = ? AND reps = ? AND due = ?", item.ID, item.Reps, item.Due).
			Updates(map[string]any{
				"stage":          int(next.Stage),
				"stability":      next.Stability,
				"difficulty":     next.Difficulty,
				"elapsed_days":   next.ElapsedDays,
				"scheduled_days": next.ScheduledDays,
				"learning_steps": next.LearningSteps,
				"reps":           next.Reps,
				"lapses":         next.Lapses,
				"due":            next.Due,
				"last_review":    next.LastReview,
			})
		if res.Error != nil {
			return apperr.NewInternal(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NewConflict(fmt.Sprintf("item %s was rated concurrently", itemPublicID))
		}

		log := models.NewReviewLog(item.ID, userID, entry)
		if err := tx.Create(&log).Error; err != nil {
			return apperr.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return srs.MemoryState{}, err
	}

	return next, nil
}

// History returns the item's audit entries in rating order.
func (s *Service) History(ctx context.Context, itemPublicID string, userID uint) ([]models.ReviewLog, error) {
	item, err := s.itemFor(ctx, itemPublicID, userID)
	if err != nil {
		return nil, err
	}

	var logs []models.ReviewLog
	err = s.db.WithContext(ctx).
		Where("item_id = ?", item.ID).
		Order("id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	return logs, nil
}
