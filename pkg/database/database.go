package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/localsquares/localsquares/config"
	"github.com/localsquares/localsquares/internal/model"
)

// InitDB opens the configured database and migrates the engine schema.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates/updates all engine tables. Exposed separately so tests can
// run it against an in-memory sqlite instance.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Board{},
		&model.Listing{},
		&model.Slot{},
		&model.ExposureCounter{},
		&model.Subscription{},
		&model.FeaturedBooking{},
		&model.Impression{},
		&model.Click{},
		&model.ProcessedEvent{},
	)
}
