package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationSlideOrderIndex   = "2025-06-01_slides_order_id_index"
	migrationSeedDefaultSlides = "2025-06-01_seed_default_slides"

	slideOrderIndexName = "idx_slides_order_id"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger, migrations []migrationDefinition) error {
	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// createSlideOrderIndex backs the list ordering (slide_order, then id).
func createSlideOrderIndex(db *gorm.DB) error {
	return db.Exec("CREATE INDEX IF NOT EXISTS " + slideOrderIndexName + " ON slides (slide_order, id)").Error
}

// seedDefaultSlides fills an empty slide table with the starter deck.
// A database that already holds slides is left alone.
func seedDefaultSlides(db *gorm.DB) error {
	var total int64
	if err := db.Model(&slides.Slide{}).Count(&total).Error; err != nil {
		return err
	}
	if total > 0 {
		return nil
	}

	now := time.Now().UTC()
	records := DefaultSlides()
	for index := range records {
		records[index].CreatedAt = now
		records[index].UpdatedAt = now
	}
	return db.CreateInBatches(&records, 5).Error
}
