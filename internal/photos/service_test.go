package photos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubStore struct {
	mu            sync.Mutex
	records       []Photo
	fetchErr      error
	failIDs       map[string]error
	appendErr     error
	approvalCalls []string
	appended      []Draft
	onApproval    func(id string)
}

func (s *stubStore) FetchAll(ctx context.Context) ([]Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	result := make([]Photo, 0, len(s.records))
	for _, record := range s.records {
		result = append(result, record.clone())
	}
	return result, nil
}

func (s *stubStore) SetApproval(ctx context.Context, id string, approved bool) (WriteResult, error) {
	if s.onApproval != nil {
		s.onApproval(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvalCalls = append(s.approvalCalls, id)
	if err := s.failIDs[id]; err != nil {
		return WriteResult{}, err
	}
	for index := range s.records {
		if s.records[index].ID == id {
			s.records[index].Approved = approved
			return WriteResult{Row: index + 2, Range: fmt.Sprintf("Sheet1!V%d", index+2)}, nil
		}
	}
	return WriteResult{}, fmt.Errorf("%w: %s", ErrPhotoNotFound, id)
}

func (s *stubStore) Append(ctx context.Context, draft Draft) (Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return Photo{}, s.appendErr
	}
	s.appended = append(s.appended, draft)
	photo := draft.WithID(fmt.Sprintf("photo_new_%d", len(s.appended)), time.Unix(1760000000, 0).UTC())
	s.records = append(s.records, photo)
	return photo, nil
}

type recordingObserver struct {
	mu      sync.Mutex
	changes []Change
	err     error
}

func (o *recordingObserver) ObserveChange(ctx context.Context, change Change) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes = append(o.changes, change)
	return o.err
}

func (o *recordingObserver) recorded() []Change {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Change{}, o.changes...)
}

func newStubStore() *stubStore {
	return &stubStore{
		records: []Photo{
			{ID: "photo_1", URL: "u1", Title: "photo_1", Tags: []string{}},
			{ID: "photo_2", URL: "u2", Title: "photo_2", Tags: []string{}},
			{ID: "photo_3", URL: "u3", Title: "photo_3", Tags: []string{}, Approved: true},
		},
		failIDs: map[string]error{},
	}
}

func newRefreshedService(t *testing.T, store Store, observers ...ChangeObserver) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Store:     store,
		Observers: observers,
		Clock: func() time.Time {
			return time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
		},
		Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	if _, err := service.Refresh(context.Background()); err != nil {
		t.Fatalf("failed to refresh: %v", err)
	}
	return service
}

func serviceErrorCode(t *testing.T, err error) string {
	t.Helper()
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	return serviceErr.Code()
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	if code := serviceErrorCode(t, err); code != "photos.service.new.missing_store" {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestRefreshLoadsRecords(t *testing.T) {
	service := newRefreshedService(t, newStubStore())

	if got := len(service.List(Query{})); got != 3 {
		t.Fatalf("expected three records, got %d", got)
	}
	if service.LoadedAt().IsZero() {
		t.Fatalf("expected load time to be recorded")
	}
}

func TestRefreshFailureKeepsPreviousList(t *testing.T) {
	store := newStubStore()
	service := newRefreshedService(t, store)

	transportErr := errors.New("status 500")
	store.fetchErr = transportErr
	_, err := service.Refresh(context.Background())
	if !errors.Is(err, transportErr) {
		t.Fatalf("expected underlying error to be preserved, got %v", err)
	}
	if code := serviceErrorCode(t, err); code != "photos.refresh.store_failed" {
		t.Fatalf("unexpected code %s", code)
	}
	if got := len(service.List(Query{})); got != 3 {
		t.Fatalf("expected previous records to survive, got %d", got)
	}
}

func TestGetUnknownPhoto(t *testing.T) {
	service := newRefreshedService(t, newStubStore())
	if _, err := service.Get("photo_9"); !errors.Is(err, ErrPhotoNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	photo, err := service.Get("photo_3")
	if err != nil || !photo.Approved {
		t.Fatalf("unexpected get result %+v, %v", photo, err)
	}
}

func TestSetApprovalUpdatesLocalStateAfterWrite(t *testing.T) {
	observer := &recordingObserver{}
	service := newRefreshedService(t, newStubStore(), observer)

	change, err := service.SetApproval(context.Background(), "photo_2", true, "reviewer-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Row != 3 || change.Range != "Sheet1!V3" || change.Reviewer != "reviewer-1" || change.Bulk {
		t.Fatalf("unexpected change %+v", change)
	}
	photo, _ := service.Get("photo_2")
	if !photo.Approved {
		t.Fatalf("expected local record to be approved")
	}
	recorded := observer.recorded()
	if len(recorded) != 1 || recorded[0].PhotoID != "photo_2" || recorded[0].Action != ChangeActionApproval {
		t.Fatalf("unexpected observed changes %+v", recorded)
	}
}

func TestSetApprovalFailureLeavesLocalState(t *testing.T) {
	store := newStubStore()
	observer := &recordingObserver{}
	service := newRefreshedService(t, store, observer)
	store.failIDs["photo_1"] = errors.New("status 500")

	_, err := service.SetApproval(context.Background(), "photo_1", true, "")
	if code := serviceErrorCode(t, err); code != "photos.set_approval.store_failed" {
		t.Fatalf("unexpected code %s", code)
	}
	photo, _ := service.Get("photo_1")
	if photo.Approved {
		t.Fatalf("expected local record to stay pending")
	}
	if len(observer.recorded()) != 0 {
		t.Fatalf("expected no observed changes")
	}
}

func TestSetApprovalNotFound(t *testing.T) {
	service := newRefreshedService(t, newStubStore())

	_, err := service.SetApproval(context.Background(), "photo_404", true, "")
	if !errors.Is(err, ErrPhotoNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if code := serviceErrorCode(t, err); code != "photos.set_approval.not_found" {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestObserverFailureDoesNotFailWrite(t *testing.T) {
	observer := &recordingObserver{err: errors.New("disk full")}
	service := newRefreshedService(t, newStubStore(), observer)

	if _, err := service.SetApproval(context.Background(), "photo_1", true, ""); err != nil {
		t.Fatalf("expected observer failure to be swallowed, got %v", err)
	}
}

func TestToggleSelection(t *testing.T) {
	service := newRefreshedService(t, newStubStore())

	selected, err := service.ToggleSelection("photo_2")
	if err != nil || !selected {
		t.Fatalf("expected photo_2 to be selected, got %v, %v", selected, err)
	}
	if _, err := service.ToggleSelection("photo_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	selection := service.Selection()
	if len(selection) != 2 || selection[0] != "photo_1" || selection[1] != "photo_2" {
		t.Fatalf("unexpected selection %v", selection)
	}

	selected, err = service.ToggleSelection("photo_2")
	if err != nil || selected {
		t.Fatalf("expected photo_2 to be deselected, got %v, %v", selected, err)
	}
	if _, err := service.ToggleSelection("photo_404"); !errors.Is(err, ErrPhotoNotFound) {
		t.Fatalf("expected unknown id to be rejected, got %v", err)
	}

	service.ClearSelection()
	if len(service.Selection()) != 0 {
		t.Fatalf("expected empty selection")
	}
}

func TestBulkSetApprovalSuccessClearsSelection(t *testing.T) {
	store := newStubStore()
	observer := &recordingObserver{}
	service := newRefreshedService(t, store, observer)
	for _, id := range []string{"photo_1", "photo_2"} {
		if _, err := service.ToggleSelection(id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	changes, err := service.BulkSetApproval(context.Background(), true, "reviewer-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected two changes, got %d", len(changes))
	}
	for _, change := range changes {
		if !change.Bulk || !change.Approved || change.Reviewer != "reviewer-2" {
			t.Fatalf("unexpected change %+v", change)
		}
	}
	if len(store.approvalCalls) != 2 {
		t.Fatalf("expected one store call per selected id, got %d", len(store.approvalCalls))
	}
	for _, id := range []string{"photo_1", "photo_2"} {
		photo, _ := service.Get(id)
		if !photo.Approved {
			t.Fatalf("expected %s to be approved locally", id)
		}
	}
	if len(service.Selection()) != 0 {
		t.Fatalf("expected selection to be cleared")
	}
	if len(observer.recorded()) != 2 {
		t.Fatalf("expected two observed changes, got %d", len(observer.recorded()))
	}
}

func TestBulkSetApprovalKeepsIDsSelectedDuringWrites(t *testing.T) {
	store := newStubStore()
	service := newRefreshedService(t, store)
	if _, err := service.ToggleSelection("photo_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.onApproval = func(id string) {
		if id != "photo_1" {
			return
		}
		if _, err := service.ToggleSelection("photo_3"); err != nil {
			t.Errorf("unexpected toggle error: %v", err)
		}
	}

	changes, err := service.BulkSetApproval(context.Background(), false, "reviewer-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 1 || changes[0].PhotoID != "photo_1" {
		t.Fatalf("expected only the snapshot to be written, got %+v", changes)
	}
	selection := service.Selection()
	if len(selection) != 1 || selection[0] != "photo_3" {
		t.Fatalf("expected photo_3 to stay selected, got %v", selection)
	}
	if photo, _ := service.Get("photo_3"); !photo.Approved {
		t.Fatalf("expected photo_3 to keep its approval")
	}
}

func TestBulkSetApprovalFailureLeavesStateUntouched(t *testing.T) {
	store := newStubStore()
	observer := &recordingObserver{}
	service := newRefreshedService(t, store, observer)
	for _, id := range []string{"photo_1", "photo_2"} {
		if _, err := service.ToggleSelection(id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	store.failIDs["photo_2"] = errors.New("status 500")

	_, err := service.BulkSetApproval(context.Background(), true, "")
	if code := serviceErrorCode(t, err); code != "photos.bulk_set_approval.store_failed" {
		t.Fatalf("unexpected code %s", code)
	}
	for _, id := range []string{"photo_1", "photo_2"} {
		photo, _ := service.Get(id)
		if photo.Approved {
			t.Fatalf("expected %s to stay pending locally", id)
		}
	}
	if len(service.Selection()) != 2 {
		t.Fatalf("expected selection to be kept")
	}
	recorded := observer.recorded()
	if len(recorded) != 1 || recorded[0].PhotoID != "photo_1" {
		t.Fatalf("expected only the landed write to be observed, got %+v", recorded)
	}
}

func TestBulkSetApprovalEmptySelection(t *testing.T) {
	service := newRefreshedService(t, newStubStore())

	_, err := service.BulkSetApproval(context.Background(), false, "")
	if !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("expected empty selection error, got %v", err)
	}
}

func TestAppendAddsRecord(t *testing.T) {
	observer := &recordingObserver{}
	service := newRefreshedService(t, newStubStore(), observer)

	photo, err := service.Append(context.Background(), Draft{URL: "https://example.com/new.jpg", Tags: []string{"city"}}, "reviewer-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.Get(photo.ID); err != nil {
		t.Fatalf("expected appended photo to be listed: %v", err)
	}
	recorded := observer.recorded()
	if len(recorded) != 1 || recorded[0].Action != ChangeActionAppend || recorded[0].Reviewer != "reviewer-3" {
		t.Fatalf("unexpected observed changes %+v", recorded)
	}
}

func TestAppendRejectsDraftWithoutURL(t *testing.T) {
	store := newStubStore()
	service := newRefreshedService(t, store)

	_, err := service.Append(context.Background(), Draft{Photographer: "Chen Wei"}, "")
	if !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("expected invalid draft, got %v", err)
	}
	if len(store.appended) != 0 {
		t.Fatalf("expected no store call")
	}
}

func TestZeroServiceReportsMissingStore(t *testing.T) {
	service := &Service{}
	_, err := service.SetApproval(context.Background(), "photo_1", true, "")
	if code := serviceErrorCode(t, err); code != "photos.set_approval.missing_store" {
		t.Fatalf("unexpected code %s", code)
	}
}
