package photos

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"
)

var generatedIDPattern = regexp.MustCompile(`^photo_\d+_[0-9a-z]+$`)

func fixedClock() time.Time {
	return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
}

func TestMockStoreGeneratesDeterministicRecords(t *testing.T) {
	first, err := NewMockStore(7, 40, fixedClock).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := NewMockStore(7, 40, fixedClock).FetchAll(context.Background())

	if len(first) != 40 {
		t.Fatalf("expected 40 records, got %d", len(first))
	}
	for index := range first {
		if first[index].ID != second[index].ID || first[index].Photographer != second[index].Photographer || first[index].Approved != second[index].Approved {
			t.Fatalf("expected the same seed to produce the same records at %d", index)
		}
	}
	for _, record := range first {
		if record.URL == "" || record.Title == "" {
			t.Fatalf("expected url and title on %+v", record)
		}
		if len(record.Tags) < 2 || len(record.Tags) > 4 {
			t.Fatalf("expected two to four tags, got %v", record.Tags)
		}
		if record.UploadDate.Before(mockEpoch) || record.UploadDate.After(fixedClock()) {
			t.Fatalf("upload date %v out of range", record.UploadDate)
		}
	}
}

func TestMockStoreSetApprovalReportsSheetRow(t *testing.T) {
	store := NewMockStore(1, 5, fixedClock)

	result, err := store.SetApproval(context.Background(), "photo_3", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Row != 4 {
		t.Fatalf("expected row 4, got %d", result.Row)
	}
	records, _ := store.FetchAll(context.Background())
	if !records[2].Approved {
		t.Fatalf("expected photo_3 to be approved")
	}

	if _, err := store.SetApproval(context.Background(), "photo_99", true); !errors.Is(err, ErrPhotoNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMockStoreAppend(t *testing.T) {
	store := NewMockStore(1, 2, fixedClock)

	photo, err := store.Append(context.Background(), Draft{URL: "https://example.com/a.jpg", Photographer: "Chen Wei"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !generatedIDPattern.MatchString(photo.ID) {
		t.Fatalf("unexpected generated id %q", photo.ID)
	}
	if photo.Title != photo.ID || photo.Approved || !photo.UploadDate.Equal(fixedClock()) {
		t.Fatalf("unexpected appended photo %+v", photo)
	}
	records, _ := store.FetchAll(context.Background())
	if len(records) != 3 || records[2].ID != photo.ID {
		t.Fatalf("expected appended photo to be last, got %d records", len(records))
	}
}

func TestMockStoreHonoursCancellation(t *testing.T) {
	store := NewMockStore(1, 2, fixedClock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.FetchAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, err := store.SetApproval(ctx, "photo_1", true); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestTimestampIDProviderFormat(t *testing.T) {
	id, err := NewTimestampIDProvider(fixedClock).NewID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !generatedIDPattern.MatchString(id) {
		t.Fatalf("unexpected id %q", id)
	}
}
