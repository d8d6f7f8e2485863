package db

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/branchreel/internal/models"
	"gorm.io/gorm/clause"
)

// MediaRepository handles database operations for known media durations
type MediaRepository struct {
	db *DB
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// GetByURI retrieves a media item by its source URI
func (r *MediaRepository) GetByURI(ctx context.Context, uri string) (*models.MediaRecord, error) {
	var media models.MediaRecord
	result := r.db.WithContext(ctx).Where("uri = ?", uri).First(&media)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &media, nil
}

// Upsert inserts a media item or updates the duration of an existing URI
func (r *MediaRepository) Upsert(ctx context.Context, media *models.MediaRecord) error {
	if media.URI == "" || media.Duration <= 0 {
		return fmt.Errorf("%w: media needs a uri and a positive duration", ErrInvalidInput)
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uri"}},
		DoUpdates: clause.AssignmentColumns([]string{"duration"}),
	}).Create(media)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert media: %w", MapGormError(result.Error))
	}
	return nil
}

// DurationsFor returns the known durations of the given URIs, keyed by URI
func (r *MediaRepository) DurationsFor(ctx context.Context, uris []string) (map[string]float64, error) {
	out := make(map[string]float64, len(uris))
	if len(uris) == 0 {
		return out, nil
	}

	var mediaList []models.MediaRecord
	result := r.db.WithContext(ctx).Where("uri IN ?", uris).Find(&mediaList)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load media durations: %w", MapGormError(result.Error))
	}
	for i := range mediaList {
		out[mediaList[i].URI] = mediaList[i].Duration
	}
	return out, nil
}

// List retrieves all media items with pagination
func (r *MediaRepository) List(ctx context.Context, limit, offset int) ([]*models.MediaRecord, error) {
	var mediaList []*models.MediaRecord
	query := r.db.WithContext(ctx).Order("uri ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	result := query.Find(&mediaList)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list media: %w", MapGormError(result.Error))
	}
	return mediaList, nil
}

// Count returns the number of known media items
func (r *MediaRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.MediaRecord{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count media: %w", MapGormError(result.Error))
	}
	return count, nil
}
