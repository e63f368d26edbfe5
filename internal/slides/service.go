package slides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "slides.service.new"
	opList       = "slides.list"
	opGet        = "slides.get"
	opCreate     = "slides.create"
	opUpdate     = "slides.update"
	opDelete     = "slides.delete"
	opCount      = "slides.count"

	columnID    = "id"
	columnOrder = "slide_order"
	queryByID   = columnID + " = ?"

	reasonMissingDatabase = "missing_database"
	reasonMissingContent  = "missing_content"
	reasonInvalidLayout   = "invalid_layout"
	reasonNotFound        = "not_found"
	reasonQueryFailed     = "query_failed"
	reasonInsertFailed    = "insert_failed"
	reasonSaveFailed      = "save_failed"
	reasonDeleteFailed    = "delete_failed"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service is the durable store for the ordered slide collection.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:     cfg.Database,
		clock:  clock,
		logger: logger,
	}, nil
}

// List returns every slide sorted by order, ties broken by id.
func (s *Service) List(ctx context.Context) ([]Slide, error) {
	if s.db == nil {
		s.logError(opList, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opList, reasonMissingDatabase, errMissingDatabase)
	}

	var records []Slide
	if err := s.db.WithContext(ctx).
		Order(orderClause()).
		Find(&records).Error; err != nil {
		s.logError(opList, reasonQueryFailed, err)
		return nil, newServiceError(opList, reasonQueryFailed, err)
	}
	return records, nil
}

// Get returns the slide with the provided identifier.
func (s *Service) Get(ctx context.Context, id SlideID) (Slide, error) {
	if s.db == nil {
		s.logError(opGet, reasonMissingDatabase, errMissingDatabase)
		return Slide{}, newServiceError(opGet, reasonMissingDatabase, errMissingDatabase)
	}

	var record Slide
	err := s.db.WithContext(ctx).Where(queryByID, id.Int64()).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Slide{}, newServiceError(opGet, reasonNotFound, ErrSlideNotFound)
	}
	if err != nil {
		s.logError(opGet, reasonQueryFailed, err, zap.Int64("slide_id", id.Int64()))
		return Slide{}, newServiceError(opGet, reasonQueryFailed, err)
	}
	return record, nil
}

// Create validates and persists a new slide, returning it with its assigned id.
func (s *Service) Create(ctx context.Context, input CreateInput) (Slide, error) {
	if s.db == nil {
		s.logError(opCreate, reasonMissingDatabase, errMissingDatabase)
		return Slide{}, newServiceError(opCreate, reasonMissingDatabase, errMissingDatabase)
	}
	if input.Content == nil {
		return Slide{}, newServiceError(opCreate, reasonMissingContent, newValidationError("content", "is required"))
	}

	layout := LayoutDefault
	if input.Layout != nil {
		parsed, err := ParseLayout(*input.Layout)
		if err != nil {
			return Slide{}, newServiceError(opCreate, reasonInvalidLayout, err)
		}
		layout = parsed
	}

	now := s.clock().UTC()
	record := Slide{
		Content:   *input.Content,
		Layout:    layout,
		Metadata:  Metadata{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.Order != nil {
		record.Order = *input.Order
	}
	if input.Metadata != nil {
		record.Metadata = input.Metadata.Clone()
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError(opCreate, reasonInsertFailed, err)
		return Slide{}, newServiceError(opCreate, reasonInsertFailed, err)
	}
	return record, nil
}

// Update merges the supplied fields onto the stored slide. Concurrent writers are last-write-wins.
func (s *Service) Update(ctx context.Context, id SlideID, input UpdateInput) (Slide, error) {
	if s.db == nil {
		s.logError(opUpdate, reasonMissingDatabase, errMissingDatabase)
		return Slide{}, newServiceError(opUpdate, reasonMissingDatabase, errMissingDatabase)
	}

	var layout *Layout
	if input.Layout != nil {
		parsed, err := ParseLayout(*input.Layout)
		if err != nil {
			return Slide{}, newServiceError(opUpdate, reasonInvalidLayout, err)
		}
		layout = &parsed
	}

	var updated Slide
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Slide
		err := tx.Where(queryByID, id.Int64()).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opUpdate, reasonNotFound, ErrSlideNotFound)
		}
		if err != nil {
			s.logError(opUpdate, reasonQueryFailed, err, zap.Int64("slide_id", id.Int64()))
			return newServiceError(opUpdate, reasonQueryFailed, err)
		}

		if input.Order != nil {
			existing.Order = *input.Order
		}
		if input.Content != nil {
			existing.Content = *input.Content
		}
		if layout != nil {
			existing.Layout = *layout
		}
		if input.Metadata != nil {
			existing.Metadata = input.Metadata.Clone()
		}
		if existing.Metadata == nil {
			existing.Metadata = Metadata{}
		}
		existing.UpdatedAt = s.clock().UTC()

		if err := tx.Save(&existing).Error; err != nil {
			s.logError(opUpdate, reasonSaveFailed, err, zap.Int64("slide_id", id.Int64()))
			return newServiceError(opUpdate, reasonSaveFailed, err)
		}
		updated = existing
		return nil
	})
	if txErr != nil {
		return Slide{}, txErr
	}
	return updated, nil
}

// Delete permanently removes the slide. It places no floor on the remaining count.
func (s *Service) Delete(ctx context.Context, id SlideID) error {
	if s.db == nil {
		s.logError(opDelete, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(opDelete, reasonMissingDatabase, errMissingDatabase)
	}

	result := s.db.WithContext(ctx).Where(queryByID, id.Int64()).Delete(&Slide{})
	if result.Error != nil {
		s.logError(opDelete, reasonDeleteFailed, result.Error, zap.Int64("slide_id", id.Int64()))
		return newServiceError(opDelete, reasonDeleteFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opDelete, reasonNotFound, ErrSlideNotFound)
	}
	return nil
}

// Count returns the number of stored slides.
func (s *Service) Count(ctx context.Context) (int64, error) {
	if s.db == nil {
		s.logError(opCount, reasonMissingDatabase, errMissingDatabase)
		return 0, newServiceError(opCount, reasonMissingDatabase, errMissingDatabase)
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&Slide{}).Count(&total).Error; err != nil {
		s.logError(opCount, reasonQueryFailed, err)
		return 0, newServiceError(opCount, reasonQueryFailed, err)
	}
	return total, nil
}

func orderClause() clause.OrderBy {
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: columnOrder}},
		{Column: clause.Column{Name: columnID}},
	}}
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("slides service error", attrs...)
}
