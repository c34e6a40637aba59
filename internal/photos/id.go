package photos

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

// IDProvider issues identifiers for newly appended photos.
type IDProvider interface {
	NewID() (string, error)
}

type timestampIDProvider struct {
	clock func() time.Time
}

// NewTimestampIDProvider returns ids shaped photo_<unix millis>_<base36 suffix>.
// The ids are not checked against existing rows.
func NewTimestampIDProvider(clock func() time.Time) IDProvider {
	if clock == nil {
		clock = time.Now
	}
	return &timestampIDProvider{clock: clock}
}

func (p *timestampIDProvider) NewID() (string, error) {
	suffix := strconv.FormatUint(rand.Uint64(), 36)
	return fmt.Sprintf("photo_%d_%s", p.clock().UnixMilli(), suffix), nil
}
