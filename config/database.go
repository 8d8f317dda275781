package config

import (
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/owenfield/recall-api/models"
)

var Database *gorm.DB

// Connect opens the database and migrates the schema. Postgres via DB_URL in
// production; a local sqlite file when DB_URL is unset (development).
func Connect() error {
	var err error
	dbURL := os.Getenv("DB_URL")
	if dbURL != "" {
		Database, err = gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	} else {
		Database, err = gorm.Open(sqlite.Open("recall.db"), &gorm.Config{})
	}
	if err != nil {
		panic("failed to connect database")
	}

	err = Database.AutoMigrate(
		&models.User{},
		&models.Item{},
		&models.Deck{},
		&models.DeckItem{},
		&models.ReviewLog{},
		&models.Job{},
	)
	if err != nil {
		panic("failed to auto migrate database")
	}

	return nil
}
