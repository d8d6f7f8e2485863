package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports database connectivity
type Pinger interface {
	Health(ctx context.Context) error
}

// SessionCounter reports how many sessions are live
type SessionCounter interface {
	Count() int
}

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string         `json:"status"`
	Database string         `json:"database"`
	Time     string         `json:"time"`
	Sessions int            `json:"sessions"`
	Details  map[string]any `json:"details,omitempty"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db       Pinger
	sessions SessionCounter
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(database Pinger, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{db: database, sessions: sessions}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "ok",
		Time:     time.Now().UTC().Format(time.RFC3339),
		Sessions: h.sessions.Count(),
		Details:  make(map[string]any),
	}

	// Check database connectivity
	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database Pinger, sessions SessionCounter) {
	handler := NewHealthHandler(database, sessions)
	apiGroup.GET("/health", handler.Check)
}
