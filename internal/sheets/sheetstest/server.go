// Package sheetstest provides an in-process stand-in for the Sheets v4 values endpoints.
package sheetstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

const valuesPathPrefix = "/v4/spreadsheets/"

// Write records one PUT or append request received by the server.
type Write struct {
	Method           string
	Range            string
	ValueInputOption string
	Values           [][]interface{}
}

// Server serves a single spreadsheet grid. The first row is the header row.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	apiKey        string
	spreadsheetID string
	grid          [][]string
	writes        []Write
	requests      int
	failStatus    int
}

// NewServer starts a server that accepts only the given key and spreadsheet id.
func NewServer(apiKey, spreadsheetID string, grid [][]string) *Server {
	fake := &Server{
		apiKey:        apiKey,
		spreadsheetID: spreadsheetID,
		grid:          copyGrid(grid),
	}
	fake.Server = httptest.NewServer(http.HandlerFunc(fake.handle))
	return fake
}

// FailWith makes every following request answer with the given status; 0 restores normal service.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	s.failStatus = status
	s.mu.Unlock()
}

// SetGrid replaces the spreadsheet contents.
func (s *Server) SetGrid(grid [][]string) {
	s.mu.Lock()
	s.grid = copyGrid(grid)
	s.mu.Unlock()
}

// Grid returns a copy of the spreadsheet contents.
func (s *Server) Grid() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyGrid(s.grid)
}

// Writes returns the PUT and append requests seen so far.
func (s *Server) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write{}, s.writes...)
}

// Requests counts every request, including failed ones.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++

	if s.failStatus != 0 {
		writeError(w, s.failStatus, "backend failure")
		return
	}
	if r.URL.Query().Get("key") != s.apiKey {
		writeError(w, http.StatusForbidden, "invalid api key")
		return
	}

	spreadsheetID, valueRange, ok := splitValuesPath(r.URL.Path)
	if !ok || spreadsheetID != s.spreadsheetID {
		writeError(w, http.StatusNotFound, "requested entity was not found")
		return
	}

	switch {
	case r.Method == http.MethodGet:
		s.handleGet(w, valueRange)
	case r.Method == http.MethodPut:
		s.handleUpdate(w, r, valueRange)
	case r.Method == http.MethodPost && strings.HasSuffix(valueRange, ":append"):
		s.handleAppend(w, r, strings.TrimSuffix(valueRange, ":append"))
	default:
		writeError(w, http.StatusMethodNotAllowed, "unsupported method")
	}
}

func (s *Server) handleGet(w http.ResponseWriter, valueRange string) {
	values := make([][]interface{}, 0, len(s.grid))
	for _, row := range s.grid {
		cells := make([]interface{}, len(row))
		for i, value := range row {
			cells[i] = value
		}
		values = append(values, cells)
	}
	payload := map[string]any{
		"range":          valueRange,
		"majorDimension": "ROWS",
	}
	if len(values) > 0 {
		payload["values"] = values
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, valueRange string) {
	var body struct {
		Values [][]interface{} `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	column, row, ok := parseCell(valueRange)
	if !ok {
		writeError(w, http.StatusBadRequest, "unable to parse range: "+valueRange)
		return
	}
	s.writes = append(s.writes, Write{
		Method:           http.MethodPut,
		Range:            valueRange,
		ValueInputOption: r.URL.Query().Get("valueInputOption"),
		Values:           body.Values,
	})
	for rowOffset, cells := range body.Values {
		for columnOffset, cell := range cells {
			s.setCell(row-1+rowOffset, column+columnOffset, fmt.Sprint(cell))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"spreadsheetId": s.spreadsheetID,
		"updatedRange":  valueRange,
		"updatedRows":   len(body.Values),
	})
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request, valueRange string) {
	var body struct {
		Values [][]interface{} `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.writes = append(s.writes, Write{
		Method:           http.MethodPost,
		Range:            valueRange,
		ValueInputOption: r.URL.Query().Get("valueInputOption"),
		Values:           body.Values,
	})
	for _, cells := range body.Values {
		row := make([]string, len(cells))
		for i, cell := range cells {
			row[i] = fmt.Sprint(cell)
		}
		s.grid = append(s.grid, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"spreadsheetId": s.spreadsheetID,
		"tableRange":    valueRange,
	})
}

func (s *Server) setCell(rowIndex, columnIndex int, value string) {
	for len(s.grid) <= rowIndex {
		s.grid = append(s.grid, []string{})
	}
	for len(s.grid[rowIndex]) <= columnIndex {
		s.grid[rowIndex] = append(s.grid[rowIndex], "")
	}
	s.grid[rowIndex][columnIndex] = value
}

func splitValuesPath(path string) (string, string, bool) {
	if !strings.HasPrefix(path, valuesPathPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(path, valuesPathPrefix)
	spreadsheetID, valueRange, found := strings.Cut(rest, "/values/")
	if !found || spreadsheetID == "" || valueRange == "" {
		return "", "", false
	}
	return spreadsheetID, valueRange, true
}

// parseCell reads "Sheet1!V4" or "V4" into a 0-based column and a 1-based row.
func parseCell(a1 string) (int, int, bool) {
	if separator := strings.LastIndex(a1, "!"); separator >= 0 {
		a1 = a1[separator+1:]
	}
	split := strings.IndexFunc(a1, func(r rune) bool { return r >= '0' && r <= '9' })
	if split <= 0 {
		return 0, 0, false
	}
	column := 0
	for _, letter := range strings.ToUpper(a1[:split]) {
		if letter < 'A' || letter > 'Z' {
			return 0, 0, false
		}
		column = column*26 + int(letter-'A'+1)
	}
	row, err := strconv.Atoi(a1[split:])
	if err != nil || row < 1 {
		return 0, 0, false
	}
	return column - 1, row, true
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func copyGrid(grid [][]string) [][]string {
	copied := make([][]string, len(grid))
	for i, row := range grid {
		copied[i] = append([]string{}, row...)
	}
	return copied
}
