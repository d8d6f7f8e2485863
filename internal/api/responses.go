package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/branchreel/internal/db"
	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/orchestrator"
	"github.com/stwalsh4118/branchreel/internal/schedule"
	"github.com/stwalsh4118/branchreel/internal/session"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ValidationErrorResponse lists every problem found in a schedule
type ValidationErrorResponse struct {
	Error    string   `json:"error"`
	Message  string   `json:"message"`
	Problems []string `json:"problems"`
}

// DeleteResponse represents a successful delete operation
type DeleteResponse struct {
	Message string `json:"message"`
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: code, Message: message})
}

// respondValidation writes the problems of a schedule validation failure.
func respondValidation(c *gin.Context, err error) {
	var verr *schedule.ValidationError
	problems := []string{}
	if errors.As(err, &verr) {
		problems = verr.Problems
	}
	c.JSON(http.StatusBadRequest, ValidationErrorResponse{
		Error:    "invalid_schedule",
		Message:  "Schedule failed validation",
		Problems: problems,
	})
}

// respondSessionError maps session and orchestrator failures to status codes.
func respondSessionError(c *gin.Context, sessionID string, err error) {
	var se *orchestrator.SessionError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Session not found",
		})
	case errors.Is(err, session.ErrSessionStopped):
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "session_stopped",
			Message: "Session has been stopped",
		})
	case errors.Is(err, session.ErrNotCompleted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "not_completed",
			Message: "Session has not completed yet",
		})
	case errors.As(err, &se):
		status := http.StatusConflict
		if se.Kind == orchestrator.KindInvalidInput {
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{
			Error:   string(se.Kind),
			Message: se.Message,
		})
	case errors.Is(err, session.ErrManagerStopped):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "Server is shutting down",
		})
	case schedule.IsValidationError(err):
		respondValidation(c, err)
	case db.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Experience not found",
		})
	default:
		logger.Log.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("Session operation failed")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "session_failed",
			Message: "Session operation failed",
		})
	}
}
