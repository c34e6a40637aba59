package sheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/photoreview/internal/photos"
)

type colIdx int

// The positions must match the spreadsheet layout exactly; there is no header discovery.
const (
	ColumnSource       colIdx = 0  // A
	ColumnID           colIdx = 2  // C
	ColumnPageLink     colIdx = 6  // G
	ColumnImageLink    colIdx = 7  // H
	ColumnTags         colIdx = 14 // O
	ColumnPhotographer colIdx = 15 // P
	ColumnOrientation  colIdx = 20 // U
	ColumnApprove      colIdx = 21 // V
)

var columns = []colIdx{
	ColumnSource,
	ColumnID,
	ColumnPageLink,
	ColumnImageLink,
	ColumnTags,
	ColumnPhotographer,
	ColumnOrientation,
	ColumnApprove,
}

const (
	approvedValue    = "TRUE"
	notApprovedValue = "FALSE"
)

// RowWidth is the length of a serialized row: the highest configured column plus one.
func RowWidth() int {
	highest := colIdx(0)
	for _, column := range columns {
		if column > highest {
			highest = column
		}
	}
	return int(highest) + 1
}

// RowToPhoto maps one data row. It reports false when the id or the image link is empty.
func RowToPhoto(row []string, now time.Time) (photos.Photo, bool) {
	get := func(column colIdx) string {
		if int(column) < len(row) {
			return row[column]
		}
		return ""
	}

	id := get(ColumnID)
	imageLink := get(ColumnImageLink)
	if id == "" || imageLink == "" {
		return photos.Photo{}, false
	}

	source := get(ColumnSource)
	return photos.Photo{
		ID:           id,
		URL:          imageLink,
		Title:        id,
		Description:  source,
		Photographer: get(ColumnPhotographer),
		UploadDate:   now,
		// Only a case-insensitive "true" counts; "TRUE ", "1" and "yes" do not.
		Approved:    strings.EqualFold(get(ColumnApprove), "true"),
		Tags:        parseTags(get(ColumnTags)),
		Source:      source,
		PageLink:    get(ColumnPageLink),
		Orientation: get(ColumnOrientation),
	}, true
}

// PhotoToRow is the inverse of RowToPhoto. Approval is always written upper-case.
func PhotoToRow(photo photos.Photo) []string {
	row := make([]string, RowWidth())

	source := photo.Source
	if source == "" {
		source = photo.Description
	}
	row[ColumnSource] = source
	row[ColumnID] = photo.ID
	row[ColumnPageLink] = photo.PageLink
	row[ColumnImageLink] = photo.URL
	row[ColumnTags] = strings.Join(photo.Tags, ", ")
	row[ColumnPhotographer] = photo.Photographer
	row[ColumnOrientation] = photo.Orientation
	row[ColumnApprove] = approvalCell(photo.Approved)
	return row
}

func approvalCell(approved bool) string {
	if approved {
		return approvedValue
	}
	return notApprovedValue
}

func parseTags(cell string) []string {
	if cell == "" {
		return []string{}
	}
	parts := strings.Split(cell, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tags = append(tags, strings.TrimSpace(part))
	}
	return tags
}

// ColumnLetter converts a 0-based column index to its A1 letter form.
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	letters := ""
	for value := index + 1; value > 0; value = (value - 1) / 26 {
		letters = string(rune('A'+(value-1)%26)) + letters
	}
	return letters
}

func cellsToStrings(cells []interface{}) []string {
	row := make([]string, len(cells))
	for i, cell := range cells {
		if cell == nil {
			continue
		}
		if value, ok := cell.(string); ok {
			row[i] = value
			continue
		}
		row[i] = fmt.Sprint(cell)
	}
	return row
}

func stringsToCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, value := range row {
		cells[i] = value
	}
	return cells
}
