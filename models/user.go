package models

import "gorm.io/gorm"

// User represents a user in the system
type User struct {
	gorm.Model
	Subject  string `gorm:"unique;not null;size:200"` // identity-provider subject
	Nickname string `gorm:"not null;size:100"`
	Decks    []Deck `gorm:"foreignKey:UserID"`
}
