package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/branchreel/internal/models"
	"gorm.io/gorm"
)

// ExperienceRepository handles database operations for experience schedules
type ExperienceRepository struct {
	db *DB
}

// NewExperienceRepository creates a new experience repository
func NewExperienceRepository(db *DB) *ExperienceRepository {
	return &ExperienceRepository{db: db}
}

// Create stores an experience with its questions, branches, options and
// media duration hints in a single transaction. exp.ID is assigned when empty.
func (r *ExperienceRepository) Create(ctx context.Context, exp *models.Experience) error {
	return r.save(ctx, exp, false)
}

// Replace stores an experience, first removing any experience with the same
// name. The replaced experience keeps its id unless exp.ID is set.
func (r *ExperienceRepository) Replace(ctx context.Context, exp *models.Experience) error {
	return r.save(ctx, exp, true)
}

func (r *ExperienceRepository) save(ctx context.Context, exp *models.Experience, replace bool) error {
	id := uuid.New()
	if exp.ID != "" {
		parsed, err := uuid.Parse(exp.ID)
		if err != nil {
			return fmt.Errorf("%w: experience id %q", ErrInvalidInput, exp.ID)
		}
		id = parsed
	}

	now := time.Now().UTC()
	header := &models.ExperienceRecord{
		ID:         id,
		Name:       exp.Name,
		MainSource: exp.MainSource,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if replace {
			var existing models.ExperienceRecord
			err := tx.Where("name = ?", exp.Name).First(&existing).Error
			switch {
			case err == nil:
				if exp.ID == "" {
					header.ID = existing.ID
					id = existing.ID
				}
				if err := tx.Delete(&existing).Error; err != nil {
					return MapGormError(err)
				}
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return MapGormError(err)
			}
		}
		if err := tx.Create(header).Error; err != nil {
			return MapGormError(err)
		}
		for _, q := range exp.Questions {
			if err := tx.Create(models.NewQuestionRecord(id, q)).Error; err != nil {
				return MapGormError(err)
			}
		}
		for _, b := range exp.Branches {
			// Options are inserted through the association.
			if err := tx.Create(models.NewBranchRecord(id, b)).Error; err != nil {
				return MapGormError(err)
			}
		}
		media := NewMediaRepository(&DB{DB: tx})
		for uri, d := range exp.Durations {
			if err := media.Upsert(ctx, models.NewMediaRecord(uri, d)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create experience: %w", err)
	}

	exp.ID = id.String()
	return nil
}

// GetByID loads a complete experience, ordered by trigger time
func (r *ExperienceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Experience, error) {
	var header models.ExperienceRecord
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&header)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return r.load(ctx, &header)
}

// GetByName loads a complete experience by its unique name
func (r *ExperienceRepository) GetByName(ctx context.Context, name string) (*models.Experience, error) {
	var header models.ExperienceRecord
	result := r.db.WithContext(ctx).Where("name = ?", name).First(&header)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return r.load(ctx, &header)
}

// List retrieves experience headers ordered by name
func (r *ExperienceRepository) List(ctx context.Context) ([]*models.ExperienceRecord, error) {
	var headers []*models.ExperienceRecord
	result := r.db.WithContext(ctx).Order("name ASC").Find(&headers)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list experiences: %w", MapGormError(result.Error))
	}
	return headers, nil
}

// Delete removes an experience and, through cascades, its schedule
func (r *ExperienceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.ExperienceRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete experience: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ExperienceRepository) load(ctx context.Context, header *models.ExperienceRecord) (*models.Experience, error) {
	var questions []models.QuestionRecord
	if err := r.db.WithContext(ctx).
		Where("experience_id = ?", header.ID.String()).
		Order("trigger_time ASC, question_id ASC").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", MapGormError(err))
	}

	var branches []models.BranchRecord
	if err := r.db.WithContext(ctx).
		Where("experience_id = ?", header.ID.String()).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("trigger_time ASC, branch_id ASC").
		Find(&branches).Error; err != nil {
		return nil, fmt.Errorf("failed to load branches: %w", MapGormError(err))
	}

	exp := &models.Experience{
		ID:         header.ID.String(),
		Name:       header.Name,
		MainSource: header.MainSource,
		Questions:  make([]models.Question, 0, len(questions)),
		Branches:   make([]models.BranchDefinition, 0, len(branches)),
	}
	for i := range questions {
		exp.Questions = append(exp.Questions, questions[i].ToQuestion())
	}

	uris := []string{header.MainSource}
	for i := range branches {
		b := branches[i].ToBranch()
		for _, o := range b.Options {
			if o.VideoSource != "" {
				uris = append(uris, o.VideoSource)
			}
		}
		exp.Branches = append(exp.Branches, b)
	}

	durations, err := NewMediaRepository(r.db).DurationsFor(ctx, uris)
	if err != nil {
		return nil, err
	}
	exp.Durations = durations

	return exp, nil
}
