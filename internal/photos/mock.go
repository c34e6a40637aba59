package photos

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

var (
	mockPhotographers = []string{"Alex Johnson", "Maria Garcia", "Chen Wei", "Fatima Al-Fassi", "David Smith"}
	mockTags          = []string{"nature", "city", "portrait", "animal", "landscape", "abstract", "food", "travel"}
	mockCameras       = []string{"Sony A7 IV", "Canon EOS R5", "Nikon Z7 II", "Fujifilm X-T4"}
	mockLenses        = []string{"50mm f/1.8", "24-70mm f/2.8", "85mm f/1.4", "16-35mm f/4"}
	mockISOValues     = []int{100, 200, 400, 800, 1600}
	mockEpoch         = time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)
)

const mockDescription = "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua."

// MockStore is an in-memory Store filled with generated photos, used when no spreadsheet is configured.
type MockStore struct {
	mu         sync.Mutex
	records    []Photo
	idProvider IDProvider
	clock      func() time.Time
}

// NewMockStore generates count photos from the given seed.
func NewMockStore(seed uint64, count int, clock func() time.Time) *MockStore {
	if clock == nil {
		clock = time.Now
	}
	generator := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	now := clock().UTC()

	records := make([]Photo, 0, count)
	for index := 1; index <= count; index++ {
		id := fmt.Sprintf("photo_%d", index)
		records = append(records, Photo{
			ID:           id,
			URL:          fmt.Sprintf("https://picsum.photos/seed/%d/800/600", index),
			Title:        fmt.Sprintf("Photo Title %d", index),
			Description:  mockDescription,
			Photographer: pick(generator, mockPhotographers),
			UploadDate:   randomDate(generator, mockEpoch, now),
			Approved:     generator.Float64() > 0.4,
			Tags:         randomTags(generator),
			Metadata: Metadata{
				Camera:       pick(generator, mockCameras),
				Lens:         pick(generator, mockLenses),
				Aperture:     fmt.Sprintf("f/%.1f", generator.Float64()*8+1.8),
				ShutterSpeed: fmt.Sprintf("1/%ds", generator.IntN(1000)+50),
				ISO:          pick(generator, mockISOValues),
			},
		})
	}

	return &MockStore{
		records:    records,
		idProvider: NewTimestampIDProvider(clock),
		clock:      clock,
	}
}

func (m *MockStore) FetchAll(ctx context.Context) ([]Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Photo, 0, len(m.records))
	for _, record := range m.records {
		result = append(result, record.clone())
	}
	return result, nil
}

// SetApproval mirrors the sheet addressing: the reported row is the index plus the header offset.
func (m *MockStore) SetApproval(ctx context.Context, id string, approved bool) (WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return WriteResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for index := range m.records {
		if m.records[index].ID == id {
			m.records[index].Approved = approved
			return WriteResult{Row: index + 2}, nil
		}
	}
	return WriteResult{}, fmt.Errorf("%w: %s", ErrPhotoNotFound, id)
}

func (m *MockStore) Append(ctx context.Context, draft Draft) (Photo, error) {
	if err := ctx.Err(); err != nil {
		return Photo{}, err
	}
	id, err := m.idProvider.NewID()
	if err != nil {
		return Photo{}, err
	}
	photo := draft.WithID(id, m.clock().UTC())

	m.mu.Lock()
	m.records = append(m.records, photo.clone())
	m.mu.Unlock()
	return photo, nil
}

func pick[T any](generator *rand.Rand, values []T) T {
	return values[generator.IntN(len(values))]
}

func randomTags(generator *rand.Rand) []string {
	count := generator.IntN(3) + 2
	shuffled := append([]string{}, mockTags...)
	generator.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:count]
}

func randomDate(generator *rand.Rand, start, end time.Time) time.Time {
	span := end.Sub(start)
	if span <= 0 {
		return start
	}
	return start.Add(time.Duration(generator.Int64N(int64(span))))
}
