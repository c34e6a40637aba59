package photos

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrPhotoNotFound indicates that no record carries the requested identifier.
	ErrPhotoNotFound = errors.New("photos: photo not found")
	// ErrInvalidDraft indicates that a new photo is missing its image link.
	ErrInvalidDraft = errors.New("photos: invalid draft")
	// ErrEmptySelection indicates that a bulk operation was requested with nothing selected.
	ErrEmptySelection = errors.New("photos: selection is empty")
)

// ChangeAction enumerates the mutations a photo can go through.
type ChangeAction string

const (
	// ChangeActionApproval marks an approval flag overwrite.
	ChangeActionApproval ChangeAction = "approval"
	// ChangeActionAppend marks a newly appended photo row.
	ChangeActionAppend ChangeAction = "append"
)

// Metadata holds camera details. Sheet-sourced records leave it empty.
type Metadata struct {
	Camera       string `json:"camera"`
	Lens         string `json:"lens"`
	Aperture     string `json:"aperture"`
	ShutterSpeed string `json:"shutter_speed"`
	ISO          int    `json:"iso"`
}

// Photo is one reviewed photograph together with its approval state.
type Photo struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Photographer string    `json:"photographer"`
	UploadDate   time.Time `json:"upload_date"`
	Approved     bool      `json:"approved"`
	Tags         []string  `json:"tags"`
	Source       string    `json:"source,omitempty"`
	PageLink     string    `json:"page_link,omitempty"`
	Orientation  string    `json:"orientation,omitempty"`
	Metadata     Metadata  `json:"metadata"`
}

func (p Photo) clone() Photo {
	copied := p
	copied.Tags = append([]string{}, p.Tags...)
	return copied
}

// Draft describes a photo that has not been assigned an identifier yet.
type Draft struct {
	URL          string   `json:"url"`
	Description  string   `json:"description"`
	Photographer string   `json:"photographer"`
	Approved     bool     `json:"approved"`
	Tags         []string `json:"tags"`
	Source       string   `json:"source"`
	PageLink     string   `json:"page_link"`
	Orientation  string   `json:"orientation"`
}

// Validate reports whether the draft carries the fields every stored row needs.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidDraft)
	}
	return nil
}

// WithID materializes the draft into a Photo.
func (d Draft) WithID(id string, uploadedAt time.Time) Photo {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return Photo{
		ID:           id,
		URL:          d.URL,
		Title:        id,
		Description:  d.Description,
		Photographer: d.Photographer,
		UploadDate:   uploadedAt,
		Approved:     d.Approved,
		Tags:         append([]string{}, tags...),
		Source:       d.Source,
		PageLink:     d.PageLink,
		Orientation:  d.Orientation,
	}
}

// WriteResult reports where a store placed a single-cell write.
type WriteResult struct {
	Range string
	Row   int
}

// Change describes one applied mutation, handed to observers after the store accepted it.
type Change struct {
	PhotoID   string
	Action    ChangeAction
	Approved  bool
	Row       int
	Range     string
	Reviewer  string
	Bulk      bool
	AppliedAt time.Time
}
