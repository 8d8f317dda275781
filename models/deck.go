package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultDeckCapacity bounds deck membership when no explicit capacity is set.
const DefaultDeckCapacity = 500

// Deck represents a bounded, named collection of items
type Deck struct {
	gorm.Model
	PublicID string `gorm:"size:100;uniqueIndex" json:"public_id"`
	Title    string `gorm:"not null;size:100" json:"title"`
	UserID   uint   `gorm:"not null;index" json:"-"`
	User     User   `gorm:"foreignKey:UserID" json:"-"`

	// Capacity is the fixed maximum membership count. Adds beyond it are
	// rejected, never truncated.
	Capacity int `gorm:"not null;default:500" json:"capacity"`

	Memberships []DeckItem `gorm:"foreignKey:DeckID" json:"-"`
}

// DeckItem is a deck membership row. Items and decks are many-to-many;
// removing a membership never deletes the item. Memberships are hard-deleted
// so a removed item can be re-added without tripping the unique index.
type DeckItem struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	DeckID    uint      `gorm:"not null;index:idx_deck_item,unique" json:"deck_id"`
	ItemID    uint      `gorm:"not null;index:idx_deck_item,unique" json:"item_id"`
	CreatedAt time.Time `json:"created_at"`

	Deck Deck `gorm:"foreignKey:DeckID" json:"-"`
	Item Item `gorm:"foreignKey:ItemID" json:"-"`
}
