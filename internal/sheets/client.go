package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/photoreview/internal/photos"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// DefaultRange is read, and appended to, when no range is configured.
const DefaultRange = "Sheet1!A1:Z1000"

const (
	valueInputRaw = "RAW"

	opFetchAll    = "fetch_all"
	opSetApproval = "set_approval"
	opAppend      = "append"
)

type ClientConfig struct {
	APIKey        string
	SpreadsheetID string
	Range         string
	// Endpoint overrides the Sheets API base URL.
	Endpoint   string
	IDProvider photos.IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

var _ photos.Store = (*Client)(nil)

// Client talks to one spreadsheet range with a static API key. Every call is a
// single request; nothing is cached, retried or batched.
type Client struct {
	service       *sheetsapi.Service
	spreadsheetID string
	readRange     string
	sheetPrefix   string
	idProvider    photos.IDProvider
	clock         func() time.Time
	logger        *zap.Logger
}

// NewClient refuses to build a client without an API key and a spreadsheet id.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, ErrMissingSpreadsheetID
	}
	readRange := strings.TrimSpace(cfg.Range)
	if readRange == "" {
		readRange = DefaultRange
	}

	options := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		options = append(options, option.WithEndpoint(endpoint))
	}
	service, err := sheetsapi.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = photos.NewTimestampIDProvider(clock)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		service:       service,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		sheetPrefix:   sheetPrefix(readRange),
		idProvider:    idProvider,
		clock:         clock,
		logger:        logger,
	}, nil
}

// FetchAll reads the configured range, drops the first row as a header and
// maps the rest. Rows missing an id or image link are skipped silently.
func (c *Client) FetchAll(ctx context.Context) ([]photos.Photo, error) {
	response, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, c.readRange).Context(ctx).Do()
	if err != nil {
		return nil, newTransportError(opFetchAll, err)
	}
	if len(response.Values) == 0 {
		return []photos.Photo{}, nil
	}

	now := c.clock().UTC()
	rows := response.Values[1:]
	records := make([]photos.Photo, 0, len(rows))
	for _, cells := range rows {
		record, ok := RowToPhoto(cellsToStrings(cells), now)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	c.logger.Debug("sheet rows fetched",
		zap.Int("rows", len(rows)),
		zap.Int("photos", len(records)))
	return records, nil
}

// SetApproval re-reads the whole sheet to find the id, then overwrites the
// approval cell at row index+2 (one for the header, one for 1-based rows).
// An edit to the sheet between the read and the write can shift the target row.
func (c *Client) SetApproval(ctx context.Context, id string, approved bool) (photos.WriteResult, error) {
	records, err := c.FetchAll(ctx)
	if err != nil {
		return photos.WriteResult{}, err
	}

	index := -1
	for i, record := range records {
		if record.ID == id {
			index = i
			break
		}
	}
	if index == -1 {
		return photos.WriteResult{}, fmt.Errorf("%w: %s", ErrPhotoNotFound, id)
	}

	row := index + 2
	cellRange := fmt.Sprintf("%s%s%d", c.sheetPrefix, ColumnLetter(int(ColumnApprove)), row)
	body := &sheetsapi.ValueRange{
		Range:  cellRange,
		Values: [][]interface{}{{approvalCell(approved)}},
	}
	_, err = c.service.Spreadsheets.Values.Update(c.spreadsheetID, cellRange, body).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return photos.WriteResult{}, newTransportError(opSetApproval, err)
	}

	c.logger.Info("approval written",
		zap.String("photo_id", id),
		zap.String("range", cellRange),
		zap.Bool("approved", approved))
	return photos.WriteResult{Range: cellRange, Row: row}, nil
}

// Append assigns a fresh id and lets the Sheets API place the row after the last one in range.
func (c *Client) Append(ctx context.Context, draft photos.Draft) (photos.Photo, error) {
	id, err := c.idProvider.NewID()
	if err != nil {
		return photos.Photo{}, fmt.Errorf("sheets: generate id: %w", err)
	}
	photo := draft.WithID(id, c.clock().UTC())

	body := &sheetsapi.ValueRange{
		Values: [][]interface{}{stringsToCells(PhotoToRow(photo))},
	}
	_, err = c.service.Spreadsheets.Values.Append(c.spreadsheetID, c.readRange, body).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return photos.Photo{}, newTransportError(opAppend, err)
	}

	c.logger.Info("photo appended", zap.String("photo_id", id))
	return photo, nil
}

// sheetPrefix returns "Sheet1!" for "Sheet1!A1:Z1000" and "" for a bare range.
func sheetPrefix(a1Range string) string {
	separator := strings.LastIndex(a1Range, "!")
	if separator <= 0 {
		return ""
	}
	return a1Range[:separator+1]
}
