package photos

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	errMissingStore = errors.New("store is required")
	noOpLogger      = zap.NewNop()
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
	opServiceNew      = "photos.service.new"
	opRefresh         = "photos.refresh"
	opSetApproval     = "photos.set_approval"
	opBulkSetApproval = "photos.bulk_set_approval"
	opAppend          = "photos.append"
	opToggleSelection = "photos.toggle_selection"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// Store is the remote tabular resource holding the photo rows.
type Store interface {
	FetchAll(ctx context.Context) ([]Photo, error)
	SetApproval(ctx context.Context, id string, approved bool) (WriteResult, error)
	Append(ctx context.Context, draft Draft) (Photo, error)
}

// ChangeObserver is told about every mutation the store accepted.
type ChangeObserver interface {
	ObserveChange(ctx context.Context, change Change) error
}

type ServiceConfig struct {
	Store     Store
	Observers []ChangeObserver
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Service owns the dashboard state: the last fetched photo list and the reviewer's selection.
type Service struct {
	store     Store
	observers []ChangeObserver
	clock     func() time.Time
	logger    *zap.Logger

	mu        sync.RWMutex
	records   []Photo
	selection map[string]struct{}
	loadedAt  time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	observers := make([]ChangeObserver, 0, len(cfg.Observers))
	for _, observer := range cfg.Observers {
		if observer != nil {
			observers = append(observers, observer)
		}
	}

	return &Service{
		store:     cfg.Store,
		observers: observers,
		clock:     clock,
		logger:    logger,
		records:   []Photo{},
		selection: make(map[string]struct{}),
	}, nil
}

// Refresh replaces the in-memory list with a fresh read of the store.
// The previous list survives a failed read.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	if s.store == nil {
		s.logError(opRefresh, "missing_store", errMissingStore)
		return 0, newServiceError(opRefresh, "missing_store", errMissingStore)
	}

	records, err := s.store.FetchAll(ctx)
	if err != nil {
		s.logError(opRefresh, "store_failed", err)
		return 0, newServiceError(opRefresh, "store_failed", err)
	}

	s.mu.Lock()
	s.records = records
	s.loadedAt = s.clock().UTC()
	s.mu.Unlock()

	s.loggerOrDefault().Debug("photos refreshed", zap.Int("count", len(records)))
	return len(records), nil
}

// List returns copies of the records matching the query.
func (s *Service) List(query Query) []Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Apply(s.records, query)
}

// Get returns a copy of the record with the given identifier.
func (s *Service) Get(id string) (Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if record.ID == id {
			return record.clone(), nil
		}
	}
	return Photo{}, fmt.Errorf("%w: %s", ErrPhotoNotFound, id)
}

// LoadedAt reports when the list was last refreshed; zero before the first refresh.
func (s *Service) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// SetApproval persists the flag first and only then updates the in-memory record.
func (s *Service) SetApproval(ctx context.Context, id string, approved bool, reviewer string) (Change, error) {
	if s.store == nil {
		s.logError(opSetApproval, "missing_store", errMissingStore)
		return Change{}, newServiceError(opSetApproval, "missing_store", errMissingStore)
	}

	result, err := s.store.SetApproval(ctx, id, approved)
	if err != nil {
		reason := storeFailureReason(err)
		s.logError(opSetApproval, reason, err, zap.String("photo_id", id))
		return Change{}, newServiceError(opSetApproval, reason, err)
	}

	change := Change{
		PhotoID:   id,
		Action:    ChangeActionApproval,
		Approved:  approved,
		Row:       result.Row,
		Range:     result.Range,
		Reviewer:  reviewer,
		AppliedAt: s.clock().UTC(),
	}

	s.mu.Lock()
	s.applyApprovalLocked(map[string]struct{}{id: {}}, approved)
	s.mu.Unlock()

	s.notify(ctx, change)
	return change, nil
}

// BulkSetApproval issues one concurrent store write per selected photo.
// Only when every write succeeds are the local records updated and the written ids deselected;
// otherwise the first error is returned and the local state is left as it was.
func (s *Service) BulkSetApproval(ctx context.Context, approved bool, reviewer string) ([]Change, error) {
	if s.store == nil {
		s.logError(opBulkSetApproval, "missing_store", errMissingStore)
		return nil, newServiceError(opBulkSetApproval, "missing_store", errMissingStore)
	}

	ids := s.Selection()
	if len(ids) == 0 {
		return nil, newServiceError(opBulkSetApproval, "empty_selection", ErrEmptySelection)
	}

	changes := make([]Change, len(ids))
	applied := make([]bool, len(ids))
	var group errgroup.Group
	for index, id := range ids {
		group.Go(func() error {
			result, err := s.store.SetApproval(ctx, id, approved)
			if err != nil {
				return err
			}
			changes[index] = Change{
				PhotoID:   id,
				Action:    ChangeActionApproval,
				Approved:  approved,
				Row:       result.Row,
				Range:     result.Range,
				Reviewer:  reviewer,
				Bulk:      true,
				AppliedAt: s.clock().UTC(),
			}
			applied[index] = true
			return nil
		})
	}
	waitErr := group.Wait()

	// Writes that landed are reported even when a sibling failed; the remote sheet already holds them.
	for index, change := range changes {
		if applied[index] {
			s.notify(ctx, change)
		}
	}

	if waitErr != nil {
		reason := storeFailureReason(waitErr)
		s.logError(opBulkSetApproval, reason, waitErr, zap.Int("selected", len(ids)))
		return nil, newServiceError(opBulkSetApproval, reason, waitErr)
	}

	targets := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		targets[id] = struct{}{}
	}

	// Ids toggled in while the writes were in flight stay selected.
	s.mu.Lock()
	s.applyApprovalLocked(targets, approved)
	for id := range targets {
		delete(s.selection, id)
	}
	s.mu.Unlock()

	return changes, nil
}

// Append stores a new photo row and adds the record to the in-memory list.
func (s *Service) Append(ctx context.Context, draft Draft, reviewer string) (Photo, error) {
	if s.store == nil {
		s.logError(opAppend, "missing_store", errMissingStore)
		return Photo{}, newServiceError(opAppend, "missing_store", errMissingStore)
	}
	if err := draft.Validate(); err != nil {
		return Photo{}, newServiceError(opAppend, "invalid_draft", err)
	}

	photo, err := s.store.Append(ctx, draft)
	if err != nil {
		s.logError(opAppend, "store_failed", err)
		return Photo{}, newServiceError(opAppend, "store_failed", err)
	}

	s.mu.Lock()
	s.records = append(s.records, photo.clone())
	s.mu.Unlock()

	s.notify(ctx, Change{
		PhotoID:   photo.ID,
		Action:    ChangeActionAppend,
		Approved:  photo.Approved,
		Reviewer:  reviewer,
		AppliedAt: s.clock().UTC(),
	})
	return photo, nil
}

// ToggleSelection flips membership of a known photo in the selection and reports the new state.
func (s *Service) ToggleSelection(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.containsLocked(id) {
		return false, newServiceError(opToggleSelection, "not_found", fmt.Errorf("%w: %s", ErrPhotoNotFound, id))
	}
	if _, selected := s.selection[id]; selected {
		delete(s.selection, id)
		return false, nil
	}
	s.selection[id] = struct{}{}
	return true, nil
}

// Selection returns the selected identifiers in lexical order.
func (s *Service) Selection() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.selection))
	for id := range s.selection {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClearSelection empties the selection.
func (s *Service) ClearSelection() {
	s.mu.Lock()
	s.selection = make(map[string]struct{})
	s.mu.Unlock()
}

func (s *Service) applyApprovalLocked(targets map[string]struct{}, approved bool) {
	for index := range s.records {
		if _, ok := targets[s.records[index].ID]; ok {
			s.records[index].Approved = approved
		}
	}
}

func (s *Service) containsLocked(id string) bool {
	for _, record := range s.records {
		if record.ID == id {
			return true
		}
	}
	return false
}

func (s *Service) notify(ctx context.Context, change Change) {
	for _, observer := range s.observers {
		if err := observer.ObserveChange(ctx, change); err != nil {
			s.loggerOrDefault().Warn("change observer failed",
				zap.String("photo_id", change.PhotoID),
				zap.String("action", string(change.Action)),
				zap.Error(err))
		}
	}
}

func storeFailureReason(err error) string {
	if errors.Is(err, ErrPhotoNotFound) {
		return "not_found"
	}
	return "store_failed"
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
	s.loggerOrDefault().Error("photos service error", attrs...)
}
