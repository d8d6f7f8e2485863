package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/models"
	"github.com/stwalsh4118/branchreel/internal/session"
)

// Request/Response DTOs

// CreateSessionRequest starts a session on an experience
type CreateSessionRequest struct {
	ExperienceID string `json:"experience_id" binding:"required"`
}

// AnswerRequest submits an answer; the value is a string or a list of strings
type AnswerRequest struct {
	Answer models.Answer `json:"answer"`
}

// ChoiceRequest selects a branch option
type ChoiceRequest struct {
	OptionID *int `json:"option_id" binding:"required"`
}

// SeekRequest moves the playhead on the main source
type SeekRequest struct {
	Seconds *float64 `json:"seconds" binding:"required"`
}

// RevisitRequest rewinds to a branch point already shown
type RevisitRequest struct {
	BranchID *int `json:"branch_id" binding:"required"`
}

// SessionInfo summarises a live session in listings
type SessionInfo struct {
	ID           string    `json:"id"`
	ExperienceID string    `json:"experience_id"`
	CreatedAt    time.Time `json:"created_at"`
	IdleSeconds  float64   `json:"idle_seconds"`
}

// SessionListResponse represents the live sessions
type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// SessionHandler handles playback session requests
type SessionHandler struct {
	manager *session.Manager
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	expID, err := uuid.Parse(req.ExperienceID)
	if err != nil {
		badRequest(c, "invalid_id", "Invalid experience ID format")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	s, err := h.manager.Create(ctx, expID)
	if err != nil {
		respondSessionError(c, "", err)
		return
	}

	snap, err := s.Snapshot()
	if err != nil {
		respondSessionError(c, s.ID(), err)
		return
	}

	c.JSON(http.StatusCreated, snap)
}

// ListSessions handles GET /api/sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions := h.manager.List()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, SessionInfo{
			ID:           s.ID(),
			ExperienceID: s.ExperienceID(),
			CreatedAt:    s.CreatedAt(),
			IdleSeconds:  s.IdleDuration().Seconds(),
		})
	}
	c.JSON(http.StatusOK, SessionListResponse{Sessions: infos})
}

// GetSession handles GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	h.respondSnapshot(c, s)
}

// SubmitAnswer handles POST /api/sessions/:id/answer
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Answer must be a string or a list of strings")
		return
	}

	if err := s.Answer(req.Answer); err != nil {
		respondSessionError(c, s.ID(), err)
		return
	}
	h.respondSnapshot(c, s)
}

// SelectOption handles POST /api/sessions/:id/choice
func (h *SessionHandler) SelectOption(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var req ChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	if err := s.Choose(*req.OptionID); err != nil {
		respondSessionError(c, s.ID(), err)
		return
	}
	h.respondSnapshot(c, s)
}

// Seek handles POST /api/sessions/:id/seek
func (h *SessionHandler) Seek(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var req SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	if err := s.Seek(*req.Seconds); err != nil {
		respondSessionError(c, s.ID(), err)
		return
	}
	h.respondSnapshot(c, s)
}

// Revisit handles POST /api/sessions/:id/revisit
func (h *SessionHandler) Revisit(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var req RevisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	if err := s.Revisit(*req.BranchID); err != nil {
		respondSessionError(c, s.ID(), err)
		return
	}
	h.respondSnapshot(c, s)
}

// GetSummary handles GET /api/sessions/:id/summary. It answers 202 until the
// personality profile is ready.
func (h *SessionHandler) GetSummary(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	summary, err := s.Summary()
	if err != nil {
		respondSessionError(c, s.ID(), err)
		return
	}

	status := http.StatusOK
	if !summary.Ready {
		status = http.StatusAccepted
	}
	c.JSON(status, summary)
}

// DeleteSession handles DELETE /api/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.manager.Delete(id); err != nil {
		respondSessionError(c, id, err)
		return
	}

	logger.Log.Info().
		Str("session_id", id).
		Msg("Session deleted")

	c.JSON(http.StatusOK, DeleteResponse{Message: "Session deleted successfully"})
}

func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	id := c.Param("id")
	s, ok := h.manager.Get(id)
	if !ok {
		respondSessionError(c, id, session.ErrSessionNotFound)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) respondSnapshot(c *gin.Context, s *session.Session) {
	snap, err := s.Snapshot()
	if err != nil {
		respondSessionError(c, s.ID(), err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SetupSessionRoutes registers session routes
func SetupSessionRoutes(apiGroup *gin.RouterGroup, manager *session.Manager) {
	handler := NewSessionHandler(manager)

	apiGroup.POST("/sessions", handler.CreateSession)
	apiGroup.GET("/sessions", handler.ListSessions)
	apiGroup.GET("/sessions/:id", handler.GetSession)
	apiGroup.DELETE("/sessions/:id", handler.DeleteSession)

	apiGroup.POST("/sessions/:id/answer", handler.SubmitAnswer)
	apiGroup.POST("/sessions/:id/choice", handler.SelectOption)
	apiGroup.POST("/sessions/:id/seek", handler.Seek)
	apiGroup.POST("/sessions/:id/revisit", handler.Revisit)

	apiGroup.GET("/sessions/:id/summary", handler.GetSummary)
	apiGroup.GET("/sessions/:id/events", handler.StreamEvents)
}
