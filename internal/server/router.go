package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/photoreview/internal/auth"
	"github.com/MarcoPoloResearchLab/photoreview/internal/journal"
	"github.com/MarcoPoloResearchLab/photoreview/internal/photos"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	reviewerContextKey       = "photoreview_reviewer_id"
	anonymousReviewer        = "anonymous"
	defaultHeartbeatInterval = 25 * time.Second
)

var (
	errMissingPhotoService = errors.New("photo service dependency required")
)

// SessionValidator authenticates the reviewer behind a request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.Reviewer, error)
}

type Dependencies struct {
	PhotoService *photos.Service
	// Journal serves change history; nil disables the history route.
	Journal *journal.Service
	// Sessions gates mutating routes; nil leaves them open to the anonymous reviewer.
	Sessions          SessionValidator
	Realtime          *RealtimeDispatcher
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.PhotoService == nil {
		return nil, errMissingPhotoService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		photoService:      deps.PhotoService,
		journal:           deps.Journal,
		sessions:          deps.Sessions,
		realtime:          deps.Realtime,
		heartbeatInterval: heartbeat,
		logger:            logger,
	}

	router.GET("/healthz", handler.handleHealth)

	api := router.Group("/api")
	api.GET("/photos", handler.handleListPhotos)
	api.GET("/photos/:id", handler.handleGetPhoto)
	api.GET("/photos/:id/history", handler.handlePhotoHistory)
	api.GET("/selection", handler.handleGetSelection)
	api.GET("/events", handler.handleEventStream)

	reviewed := api.Group("/")
	reviewed.Use(handler.authorizeReviewer)
	reviewed.POST("/photos/refresh", handler.handleRefresh)
	reviewed.POST("/photos", handler.handleAppendPhoto)
	reviewed.PUT("/photos/:id/approval", handler.handleSetApproval)
	reviewed.PUT("/selection/approval", handler.handleBulkApproval)
	reviewed.POST("/selection/:id", handler.handleToggleSelection)
	reviewed.DELETE("/selection", handler.handleClearSelection)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	photoService      *photos.Service
	journal           *journal.Service
	sessions          SessionValidator
	realtime          *RealtimeDispatcher
	heartbeatInterval time.Duration
	logger            *zap.Logger
}

func (h *httpHandler) authorizeReviewer(c *gin.Context) {
	if h.sessions == nil {
		c.Set(reviewerContextKey, anonymousReviewer)
		c.Next()
		return
	}
	reviewer, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("reviewer session rejected", zap.Error(err))
		} else {
			h.logger.Warn("reviewer session rejected", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(reviewerContextKey, reviewer.ID)
	c.Next()
}

func reviewerFrom(c *gin.Context) string {
	if reviewer := c.GetString(reviewerContextKey); reviewer != "" {
		return reviewer
	}
	return anonymousReviewer
}

// respondError maps service failures onto the HTTP error payloads.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	var serviceErr *photos.ServiceError
	code := ""
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}

	switch {
	case errors.Is(err, photos.ErrPhotoNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "photo_not_found"})
	case errors.Is(err, photos.ErrEmptySelection):
		c.JSON(http.StatusConflict, gin.H{"error": "empty_selection"})
	case errors.Is(err, photos.ErrInvalidDraft):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	case code != "":
		c.JSON(http.StatusBadGateway, gin.H{"error": "sheets_unavailable", "code": code})
	default:
		h.logger.Error("unexpected handler failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
