package journal

import (
	"github.com/MarcoPoloResearchLab/photoreview/internal/photos"
	"github.com/google/uuid"
)

// Entry is one append-only record of a write the spreadsheet accepted.
type Entry struct {
	ChangeID         string              `gorm:"column:change_id;primaryKey;size:64;not null"`
	PhotoID          string              `gorm:"column:photo_id;size:190;not null;index:idx_changes_photo_time,priority:1"`
	Action           photos.ChangeAction `gorm:"column:action;size:32;not null"`
	Approved         bool                `gorm:"column:approved;not null"`
	SheetRow         int                 `gorm:"column:sheet_row;not null;default:0"`
	SheetRange       string              `gorm:"column:sheet_range;size:190;not null;default:''"`
	Reviewer         string              `gorm:"column:reviewer;size:190;not null;default:''"`
	Bulk             bool                `gorm:"column:bulk;not null;default:false"`
	AppliedAtSeconds int64               `gorm:"column:applied_at_s;not null;index:idx_changes_photo_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "approval_changes"
}

// IDProvider issues change identifiers.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
