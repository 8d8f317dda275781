package models

import (
	"gorm.io/gorm"

	"github.com/owenfield/recall-api/srs"
)

// Item subtypes. A multiple-choice item carries a distractor set; a plain item
// is question/answer only.
const (
	SubtypeBasic          = "basic"
	SubtypeMultipleChoice = "multiple-choice"
)

// Item represents an individual reviewable question/answer unit. Its memory
// state is mutated only through the session rate path; everything else treats
// it as read-only.
type Item struct {
	gorm.Model
	PublicID string `gorm:"size:100;uniqueIndex" json:"public_id"`
	UserID   uint   `gorm:"not null;index" json:"-"`
	User     User   `gorm:"foreignKey:UserID" json:"-"`

	Question    string   `gorm:"not null;size:1000" json:"question"`
	Answer      string   `gorm:"not null;size:2000" json:"answer"`
	Subtype     string   `gorm:"size:50;default:basic" json:"subtype"`
	Distractors []string `gorm:"serializer:json" json:"distractors,omitempty"`

	srs.MemoryState `gorm:"embedded"`
}
