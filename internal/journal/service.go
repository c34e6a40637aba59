package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/photoreview/internal/photos"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingPhotoID    = errors.New("photo identifier is required")
	noOpLogger           = zap.NewNop()
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
	opServiceNew = "journal.service.new"
	opRecord     = "journal.record"
	opList       = "journal.list"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service persists the approval history. It observes photos.Service.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

var _ photos.ChangeObserver = (*Service)(nil)

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
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
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// ObserveChange records the change.
func (s *Service) ObserveChange(ctx context.Context, change photos.Change) error {
	_, err := s.Record(ctx, change)
	return err
}

// Record appends one entry. A zero AppliedAt is stamped with the service clock.
func (s *Service) Record(ctx context.Context, change photos.Change) (Entry, error) {
	if s.db == nil {
		s.logError(opRecord, "missing_database", errMissingDatabase)
		return Entry{}, newServiceError(opRecord, "missing_database", errMissingDatabase)
	}
	if s.idProvider == nil {
		s.logError(opRecord, "missing_id_provider", errMissingIDProvider)
		return Entry{}, newServiceError(opRecord, "missing_id_provider", errMissingIDProvider)
	}
	if strings.TrimSpace(change.PhotoID) == "" {
		return Entry{}, newServiceError(opRecord, "missing_photo_id", errMissingPhotoID)
	}

	changeID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRecord, "id_generation_failed", err, zap.String("photo_id", change.PhotoID))
		return Entry{}, newServiceError(opRecord, "id_generation_failed", err)
	}

	appliedAt := change.AppliedAt
	if appliedAt.IsZero() {
		appliedAt = s.clock()
	}

	entry := Entry{
		ChangeID:         changeID,
		PhotoID:          change.PhotoID,
		Action:           change.Action,
		Approved:         change.Approved,
		SheetRow:         change.Row,
		SheetRange:       change.Range,
		Reviewer:         change.Reviewer,
		Bulk:             change.Bulk,
		AppliedAtSeconds: appliedAt.UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logError(opRecord, "insert_failed", err, zap.String("photo_id", change.PhotoID))
		return Entry{}, newServiceError(opRecord, "insert_failed", err)
	}
	return entry, nil
}

// List returns the newest entries for one photo, or for every photo when photoID is empty.
func (s *Service) List(ctx context.Context, photoID string, limit int) ([]Entry, error) {
	if s.db == nil {
		s.logError(opList, "missing_database", errMissingDatabase)
		return nil, newServiceError(opList, "missing_database", errMissingDatabase)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := s.db.WithContext(ctx).Model(&Entry{})
	if photoID != "" {
		query = query.Where("photo_id = ?", photoID)
	}

	var entries []Entry
	if err := query.
		Order("applied_at_s DESC").
		Order("change_id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("photo_id", photoID))
		return nil, newServiceError(opList, "query_failed", err)
	}
	return entries, nil
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
	s.loggerOrDefault().Error("journal service error", attrs...)
}
