package sheets

import (
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/photoreview/internal/photos"
	"google.golang.org/api/googleapi"
)

var (
	// ErrMissingAPIKey indicates that no Sheets API key was configured.
	ErrMissingAPIKey = errors.New("sheets: api key required")
	// ErrMissingSpreadsheetID indicates that no spreadsheet identifier was configured.
	ErrMissingSpreadsheetID = errors.New("sheets: spreadsheet id required")
	// ErrPhotoNotFound indicates the id was absent from the freshly fetched rows. It matches photos.ErrPhotoNotFound.
	ErrPhotoNotFound = fmt.Errorf("sheets: %w", photos.ErrPhotoNotFound)
)

// TransportError reports a failed call to the Sheets API: either a non-success
// HTTP status or a connection failure (StatusCode 0).
type TransportError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("sheets: %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("sheets: %s failed with status %d: %v", e.Operation, e.StatusCode, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newTransportError(operation string, err error) error {
	transportErr := &TransportError{Operation: operation, Err: err}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		transportErr.StatusCode = apiErr.Code
	}
	return transportErr
}
