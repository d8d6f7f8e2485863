package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/models"
	"github.com/stwalsh4118/branchreel/internal/playback"
)

// MediaStore lists and records known media lengths
type MediaStore interface {
	List(ctx context.Context, limit, offset int) ([]*models.MediaRecord, error)
	Count(ctx context.Context) (int64, error)
	Upsert(ctx context.Context, media *models.MediaRecord) error
}

// DurationCatalog measures sources and remembers lengths set by hand
type DurationCatalog interface {
	playback.DurationSource
	Preload(durations map[string]float64)
}

// Request/Response DTOs

// MediaListResponse represents a paginated list of known media
type MediaListResponse struct {
	Items  []*models.MediaRecord `json:"items"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// SetDurationRequest records the length of a source
type SetDurationRequest struct {
	URI      string  `json:"uri" binding:"required"`
	Duration float64 `json:"duration" binding:"required,gt=0"`
}

// DurationResponse reports the length of a source
type DurationResponse struct {
	URI      string  `json:"uri"`
	Duration float64 `json:"duration"`
}

// MediaHandler handles media duration requests
type MediaHandler struct {
	store   MediaStore
	catalog DurationCatalog
}

// NewMediaHandler creates a new media handler instance
func NewMediaHandler(store MediaStore, catalog DurationCatalog) *MediaHandler {
	return &MediaHandler{
		store:   store,
		catalog: catalog,
	}
}

// ListMedia handles GET /api/media
func (h *MediaHandler) ListMedia(c *gin.Context) {
	limit := 20 // default
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			if l == -1 {
				limit = 0 // GORM uses 0 for no limit
			} else if l > 0 {
				limit = min(l, 1000)
			}
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	items, err := h.store.List(ctx, limit, offset)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("Failed to list media")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve media list",
		})
		return
	}

	total, err := h.store.Count(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to count media")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to count media",
		})
		return
	}

	if items == nil {
		items = []*models.MediaRecord{}
	}
	c.JSON(http.StatusOK, MediaListResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetDuration handles GET /api/media/duration?uri=. Unknown sources are
// probed with FFprobe.
func (h *MediaHandler) GetDuration(c *gin.Context) {
	uri := c.Query("uri")
	if uri == "" {
		badRequest(c, "missing_uri", "Query parameter uri is required")
		return
	}

	d, err := h.catalog.Duration(uri)
	if err != nil {
		if errors.Is(err, playback.ErrUnknownDuration) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "unknown_duration",
				Message: err.Error(),
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("source", uri).
			Msg("Failed to resolve media duration")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "probe_failed",
			Message: "Failed to resolve media duration",
		})
		return
	}

	c.JSON(http.StatusOK, DurationResponse{URI: uri, Duration: d})
}

// SetDuration handles PUT /api/media
func (h *MediaHandler) SetDuration(c *gin.Context) {
	var req SetDurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Upsert(ctx, models.NewMediaRecord(req.URI, req.Duration)); err != nil {
		logger.Log.Error().
			Err(err).
			Str("source", req.URI).
			Msg("Failed to save media duration")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "update_failed",
			Message: "Failed to save media duration",
		})
		return
	}
	h.catalog.Preload(map[string]float64{req.URI: req.Duration})

	logger.Log.Info().
		Str("source", req.URI).
		Float64("duration", req.Duration).
		Msg("Media duration set")

	c.JSON(http.StatusOK, DurationResponse{URI: req.URI, Duration: req.Duration})
}

// SetupMediaRoutes registers media routes
func SetupMediaRoutes(apiGroup *gin.RouterGroup, store MediaStore, catalog DurationCatalog) {
	handler := NewMediaHandler(store, catalog)

	apiGroup.GET("/media", handler.ListMedia)
	apiGroup.PUT("/media", handler.SetDuration)
	apiGroup.GET("/media/duration", handler.GetDuration)
}
