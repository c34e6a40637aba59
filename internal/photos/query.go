package photos

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// StatusFilter narrows a listing by approval state.
type StatusFilter string

const (
	StatusAll      StatusFilter = "all"
	StatusApproved StatusFilter = "approved"
	StatusPending  StatusFilter = "pending"
)

// SortOption names an ordering of the listing.
type SortOption string

const (
	SortDateNewest     SortOption = "date-newest"
	SortDateOldest     SortOption = "date-oldest"
	SortPhotographerAZ SortOption = "photographer-az"
	SortPhotographerZA SortOption = "photographer-za"
	SortTitleAZ        SortOption = "title-az"
	SortTitleZA        SortOption = "title-za"
)

var (
	// ErrInvalidStatusFilter indicates an unknown status filter value.
	ErrInvalidStatusFilter = errors.New("photos: invalid status filter")
	// ErrInvalidSortOption indicates an unknown sort option value.
	ErrInvalidSortOption = errors.New("photos: invalid sort option")
)

// ParseStatusFilter validates raw input; an empty value means StatusAll.
func ParseStatusFilter(raw string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusPending:
		return StatusPending, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatusFilter, raw)
	}
}

// ParseSortOption validates raw input; an empty value means SortDateNewest.
func ParseSortOption(raw string) (SortOption, error) {
	option := SortOption(strings.ToLower(strings.TrimSpace(raw)))
	switch option {
	case "":
		return SortDateNewest, nil
	case SortDateNewest, SortDateOldest, SortPhotographerAZ, SortPhotographerZA, SortTitleAZ, SortTitleZA:
		return option, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSortOption, raw)
	}
}

// Query combines the status filter, the free-text search term and the ordering.
type Query struct {
	Status StatusFilter
	Search string
	Sort   SortOption
}

// Apply filters by status, then by search term, then sorts. The input slice is not modified.
func Apply(records []Photo, query Query) []Photo {
	term := strings.ToLower(query.Search)
	result := make([]Photo, 0, len(records))
	for _, record := range records {
		if !matchesStatus(record, query.Status) {
			continue
		}
		if !matchesSearch(record, term) {
			continue
		}
		result = append(result, record.clone())
	}
	sortPhotos(result, query.Sort)
	return result
}

func matchesStatus(record Photo, status StatusFilter) bool {
	switch status {
	case StatusApproved:
		return record.Approved
	case StatusPending:
		return !record.Approved
	default:
		return true
	}
}

func matchesSearch(record Photo, lowercasedTerm string) bool {
	if lowercasedTerm == "" {
		return true
	}
	if strings.Contains(strings.ToLower(record.Title), lowercasedTerm) {
		return true
	}
	if strings.Contains(strings.ToLower(record.Photographer), lowercasedTerm) {
		return true
	}
	for _, tag := range record.Tags {
		if strings.Contains(strings.ToLower(tag), lowercasedTerm) {
			return true
		}
	}
	return false
}

func sortPhotos(records []Photo, option SortOption) {
	// Collators keep scratch buffers, so each sort gets its own.
	collator := collate.New(language.English)
	var less func(left, right Photo) bool
	switch option {
	case SortDateOldest:
		less = func(left, right Photo) bool { return left.UploadDate.Before(right.UploadDate) }
	case SortPhotographerAZ:
		less = func(left, right Photo) bool { return collator.CompareString(left.Photographer, right.Photographer) < 0 }
	case SortPhotographerZA:
		less = func(left, right Photo) bool { return collator.CompareString(right.Photographer, left.Photographer) < 0 }
	case SortTitleAZ:
		less = func(left, right Photo) bool { return collator.CompareString(left.Title, right.Title) < 0 }
	case SortTitleZA:
		less = func(left, right Photo) bool { return collator.CompareString(right.Title, left.Title) < 0 }
	default:
		less = func(left, right Photo) bool { return left.UploadDate.After(right.UploadDate) }
	}
	sort.SliceStable(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}
