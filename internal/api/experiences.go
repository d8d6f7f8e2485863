package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stwalsh4118/branchreel/internal/db"
	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/models"
	"github.com/stwalsh4118/branchreel/internal/schedule"
)

// ExperienceStore reads and deletes stored experiences
type ExperienceStore interface {
	List(ctx context.Context) ([]*models.ExperienceRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Experience, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DefinitionImporter validates and stores a definition
type DefinitionImporter interface {
	Import(ctx context.Context, def *schedule.Definition) (*models.Experience, error)
}

// ExperienceListResponse represents the stored experiences
type ExperienceListResponse struct {
	Experiences []*models.ExperienceRecord `json:"experiences"`
}

// ExperienceHandler handles experience catalog requests
type ExperienceHandler struct {
	store    ExperienceStore
	importer DefinitionImporter
}

// NewExperienceHandler creates a new experience handler instance
func NewExperienceHandler(store ExperienceStore, importer DefinitionImporter) *ExperienceHandler {
	return &ExperienceHandler{store: store, importer: importer}
}

// ListExperiences handles GET /api/experiences
func (h *ExperienceHandler) ListExperiences(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	records, err := h.store.List(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to list experiences")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve experience list",
		})
		return
	}

	if records == nil {
		records = []*models.ExperienceRecord{}
	}
	c.JSON(http.StatusOK, ExperienceListResponse{Experiences: records})
}

// GetExperience handles GET /api/experiences/:id and returns the schedule
// in its definition form.
func (h *ExperienceHandler) GetExperience(c *gin.Context) {
	id, ok := parseExperienceID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	exp, err := h.store.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Experience not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("experience_id", id.String()).
			Msg("Failed to get experience by ID")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve experience",
		})
		return
	}

	c.JSON(http.StatusOK, schedule.DefinitionOf(exp))
}

// ImportExperience handles POST /api/experiences. An experience with the
// same name is replaced.
func (h *ExperienceHandler) ImportExperience(c *gin.Context) {
	var def schedule.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		badRequest(c, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	// Probing media lengths can take a while.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	exp, err := h.importer.Import(ctx, &def)
	if err != nil {
		if schedule.IsValidationError(err) {
			respondValidation(c, err)
			return
		}
		if db.IsInvalidInput(err) {
			badRequest(c, "invalid_request", err.Error())
			return
		}

		logger.Log.Error().
			Err(err).
			Str("name", def.Name).
			Msg("Failed to import experience")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "import_failed",
			Message: "Failed to import experience",
		})
		return
	}

	c.JSON(http.StatusCreated, schedule.DefinitionOf(exp))
}

// DeleteExperience handles DELETE /api/experiences/:id. Running sessions
// keep the schedule they started with.
func (h *ExperienceHandler) DeleteExperience(c *gin.Context) {
	id, ok := parseExperienceID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Delete(ctx, id); err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Experience not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("experience_id", id.String()).
			Msg("Failed to delete experience")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delete_failed",
			Message: "Failed to delete experience",
		})
		return
	}

	logger.Log.Info().
		Str("experience_id", id.String()).
		Msg("Experience deleted")

	c.JSON(http.StatusOK, DeleteResponse{Message: "Experience deleted successfully"})
}

func parseExperienceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid_id", "Invalid experience ID format")
		return uuid.Nil, false
	}
	return id, true
}

// SetupExperienceRoutes registers experience catalog routes
func SetupExperienceRoutes(apiGroup *gin.RouterGroup, store ExperienceStore, importer DefinitionImporter) {
	handler := NewExperienceHandler(store, importer)

	apiGroup.GET("/experiences", handler.ListExperiences)
	apiGroup.POST("/experiences", handler.ImportExperience)
	apiGroup.GET("/experiences/:id", handler.GetExperience)
	apiGroup.DELETE("/experiences/:id", handler.DeleteExperience)
}
