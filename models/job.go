package models

import (
	"time"

	"gorm.io/gorm"
)

// Job statuses. pending → processing → completed | failed; fail with attempts
// remaining moves back to pending.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// DefaultJobMaxAttempts is applied when a job is created without an explicit
// attempt budget.
const DefaultJobMaxAttempts = 3

// Job is a queued unit of asynchronous generation work. Jobs are mutated only
// by the job queue/dispatcher and never deleted; clients poll them for status.
type Job struct {
	gorm.Model
	PublicID string `gorm:"size:100;uniqueIndex" json:"public_id"`
	UserID   uint   `gorm:"not null;index" json:"-"`
	User     User   `gorm:"foreignKey:UserID" json:"-"`

	Type    string `gorm:"not null;size:100;index" json:"type"`
	Payload string `gorm:"type:text" json:"payload"`
	Status  string `gorm:"not null;size:20;index;default:pending" json:"status"`
	Result  string `gorm:"type:text" json:"result,omitempty"`
	Error   string `gorm:"type:text" json:"error,omitempty"`

	Attempts    int `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int `gorm:"not null;default:3" json:"max_attempts"`
	Priority    int `gorm:"not null;default:0;index" json:"priority"`

	ProcessedAt *time.Time `gorm:"default:null" json:"processed_at,omitempty"`
}
