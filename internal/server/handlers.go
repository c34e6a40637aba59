package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/photoreview/internal/journal"
	"github.com/MarcoPoloResearchLab/photoreview/internal/photos"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type photoListPayload struct {
	Photos   []photos.Photo `json:"photos"`
	Count    int            `json:"count"`
	LoadedAt *time.Time     `json:"loaded_at,omitempty"`
}

type refreshPayload struct {
	Count    int       `json:"count"`
	LoadedAt time.Time `json:"loaded_at"`
}

type approvalRequestPayload struct {
	Approved *bool `json:"approved"`
}

type changePayload struct {
	PhotoID   string    `json:"photo_id"`
	Action    string    `json:"action"`
	Approved  bool      `json:"approved"`
	Row       int       `json:"row,omitempty"`
	Range     string    `json:"range,omitempty"`
	Reviewer  string    `json:"reviewer"`
	Bulk      bool      `json:"bulk"`
	AppliedAt time.Time `json:"applied_at"`
}

// Photo is omitted when the written row is not in the loaded list yet.
type approvalResponsePayload struct {
	Photo  *photos.Photo `json:"photo,omitempty"`
	Change changePayload `json:"change"`
}

type selectionPayload struct {
	Selection []string `json:"selection"`
}

type toggleResponsePayload struct {
	ID        string   `json:"id"`
	Selected  bool     `json:"selected"`
	Selection []string `json:"selection"`
}

type bulkResponsePayload struct {
	Changes []changePayload `json:"changes"`
}

type historyEntryPayload struct {
	ChangeID   string    `json:"change_id"`
	PhotoID    string    `json:"photo_id"`
	Action     string    `json:"action"`
	Approved   bool      `json:"approved"`
	SheetRow   int       `json:"sheet_row,omitempty"`
	SheetRange string    `json:"sheet_range,omitempty"`
	Reviewer   string    `json:"reviewer"`
	Bulk       bool      `json:"bulk"`
	AppliedAt  time.Time `json:"applied_at"`
}

type historyPayload struct {
	Entries []historyEntryPayload `json:"entries"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleListPhotos(c *gin.Context) {
	status, err := photos.ParseStatusFilter(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}
	sortOption, err := photos.ParseSortOption(c.Query("sort"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_sort"})
		return
	}

	records := h.photoService.List(photos.Query{
		Status: status,
		Search: c.Query("search"),
		Sort:   sortOption,
	})
	response := photoListPayload{Photos: records, Count: len(records)}
	if loadedAt := h.photoService.LoadedAt(); !loadedAt.IsZero() {
		response.LoadedAt = &loadedAt
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetPhoto(c *gin.Context) {
	photo, err := h.photoService.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, photo)
}

func (h *httpHandler) handleRefresh(c *gin.Context) {
	count, err := h.photoService.Refresh(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, refreshPayload{Count: count, LoadedAt: h.photoService.LoadedAt()})
}

func (h *httpHandler) handleAppendPhoto(c *gin.Context) {
	var draft photos.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	photo, err := h.photoService.Append(c.Request.Context(), draft, reviewerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, photo)
}

func (h *httpHandler) handleSetApproval(c *gin.Context) {
	var request approvalRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Approved == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	change, err := h.photoService.SetApproval(c.Request.Context(), c.Param("id"), *request.Approved, reviewerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response := approvalResponsePayload{Change: newChangePayload(change)}
	if photo, err := h.photoService.Get(change.PhotoID); err == nil {
		response.Photo = &photo
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetSelection(c *gin.Context) {
	c.JSON(http.StatusOK, selectionPayload{Selection: h.photoService.Selection()})
}

func (h *httpHandler) handleToggleSelection(c *gin.Context) {
	id := c.Param("id")
	selected, err := h.photoService.ToggleSelection(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toggleResponsePayload{
		ID:        id,
		Selected:  selected,
		Selection: h.photoService.Selection(),
	})
}

func (h *httpHandler) handleClearSelection(c *gin.Context) {
	h.photoService.ClearSelection()
	c.JSON(http.StatusOK, selectionPayload{Selection: []string{}})
}

func (h *httpHandler) handleBulkApproval(c *gin.Context) {
	var request approvalRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Approved == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	changes, err := h.photoService.BulkSetApproval(c.Request.Context(), *request.Approved, reviewerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response := bulkResponsePayload{Changes: make([]changePayload, 0, len(changes))}
	for _, change := range changes {
		response.Changes = append(response.Changes, newChangePayload(change))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handlePhotoHistory(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history_unavailable"})
		return
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}

	id := c.Param("id")
	if _, err := h.photoService.Get(id); err != nil {
		h.respondError(c, err)
		return
	}

	entries, err := h.journal.List(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error("failed to list change history", zap.String("photo_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history_failed"})
		return
	}
	response := historyPayload{Entries: make([]historyEntryPayload, 0, len(entries))}
	for _, entry := range entries {
		response.Entries = append(response.Entries, newHistoryEntryPayload(entry))
	}
	c.JSON(http.StatusOK, response)
}

func newChangePayload(change photos.Change) changePayload {
	return changePayload{
		PhotoID:   change.PhotoID,
		Action:    string(change.Action),
		Approved:  change.Approved,
		Row:       change.Row,
		Range:     change.Range,
		Reviewer:  change.Reviewer,
		Bulk:      change.Bulk,
		AppliedAt: change.AppliedAt,
	}
}

func newHistoryEntryPayload(entry journal.Entry) historyEntryPayload {
	return historyEntryPayload{
		ChangeID:   entry.ChangeID,
		PhotoID:    entry.PhotoID,
		Action:     string(entry.Action),
		Approved:   entry.Approved,
		SheetRow:   entry.SheetRow,
		SheetRange: entry.SheetRange,
		Reviewer:   entry.Reviewer,
		Bulk:       entry.Bulk,
		AppliedAt:  time.Unix(entry.AppliedAtSeconds, 0).UTC(),
	}
}
