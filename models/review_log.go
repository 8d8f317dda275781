package models

import (
	"time"

	"github.com/owenfield/recall-api/srs"
)

// ReviewLog is an append-only audit entry, one per rating event. Rows are
// never mutated or deleted except when their item is explicitly deleted.
type ReviewLog struct {
	ID     uint `gorm:"primaryKey" json:"-"`
	ItemID uint `gorm:"not null;index" json:"-"`
	UserID uint `gorm:"not null;index" json:"-"`

	Rating          srs.Rating `gorm:"not null" json:"rating"`
	Stage           srs.Stage  `gorm:"not null" json:"stage"`
	Due             time.Time  `gorm:"not null" json:"due"`
	Stability       float64    `gorm:"not null" json:"stability"`
	Difficulty      float64    `gorm:"not null" json:"difficulty"`
	ElapsedDays     int        `gorm:"not null" json:"elapsed_days"`
	LastElapsedDays int        `gorm:"not null" json:"last_elapsed_days"`
	ScheduledDays   int        `gorm:"not null" json:"scheduled_days"`
	ReviewedAt      time.Time  `gorm:"not null;index" json:"reviewed_at"`
}

// NewReviewLog builds the persistence row for an engine log entry.
func NewReviewLog(itemID, userID uint, entry srs.LogEntry) ReviewLog {
	return ReviewLog{
		ItemID:          itemID,
		UserID:          userID,
		Rating:          entry.Rating,
		Stage:           entry.Stage,
		Due:             entry.Due,
		Stability:       entry.Stability,
		Difficulty:      entry.Difficulty,
		ElapsedDays:     entry.ElapsedDays,
		LastElapsedDays: entry.LastElapsedDays,
		ScheduledDays:   entry.ScheduledDays,
		ReviewedAt:      entry.ReviewedAt,
	}
}
