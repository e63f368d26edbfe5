package database

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// When seedDefaults is set the default deck is inserted into an empty database once.
func OpenSQLite(path string, logger *zap.Logger, seedDefaults bool) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&slides.Slide{}, &migrationRecord{}); err != nil {
		return nil, err
	}

	migrations := []migrationDefinition{
		{name: migrationSlideOrderIndex, apply: createSlideOrderIndex},
	}
	if seedDefaults {
		migrations = append(migrations, migrationDefinition{name: migrationSeedDefaultSlides, apply: seedDefaultSlides})
	}
	if err := applyMigrations(db, logger, migrations); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path), zap.Bool("seed_defaults", seedDefaults))
	}

	return db, nil
}
