// Package catalog loads experience definitions into the catalog database,
// from the CLI, the API, the seed file and a watched directory.
package catalog

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/models"
	"github.com/stwalsh4118/branchreel/internal/playback"
	"github.com/stwalsh4118/branchreel/internal/schedule"
)

// Store persists experiences, replacing any existing one with the same name.
type Store interface {
	Replace(ctx context.Context, exp *models.Experience) error
}

// DurationCache measures sources and remembers lengths declared up front.
type DurationCache interface {
	playback.DurationSource
	Preload(durations map[string]float64)
}

// Importer validates definitions and stores them.
type Importer struct {
	store     Store
	durations DurationCache
}

// NewImporter creates an importer. durations may be nil, in which case
// only the definition's own media hints are used for validation.
func NewImporter(store Store, durations DurationCache) *Importer {
	return &Importer{store: store, durations: durations}
}

// Import validates def and stores it. An experience with the same name is
// replaced and keeps its id.
func (i *Importer) Import(ctx context.Context, def *schedule.Definition) (*models.Experience, error) {
	exp := def.Experience()
	i.measure(&exp)

	if err := schedule.Validate(&exp); err != nil {
		return nil, err
	}

	if err := i.store.Replace(ctx, &exp); err != nil {
		return nil, fmt.Errorf("failed to store experience %q: %w", exp.Name, err)
	}
	if i.durations != nil {
		i.durations.Preload(exp.Durations)
	}

	logger.Log.Info().
		Str("experience_id", exp.ID).
		Str("experience", exp.Name).
		Int("questions", len(exp.Questions)).
		Int("branches", len(exp.Branches)).
		Msg("Experience imported")

	return &exp, nil
}

// ImportFile reads a YAML definition and imports it.
func (i *Importer) ImportFile(ctx context.Context, path string) (*models.Experience, error) {
	def, err := schedule.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return i.Import(ctx, def)
}

// measure fills in lengths the definition does not declare. Sources that
// cannot be measured are left out and checked again at playback.
func (i *Importer) measure(exp *models.Experience) {
	if i.durations == nil {
		return
	}
	for _, uri := range exp.Sources() {
		if exp.Durations[uri] > 0 {
			continue
		}
		d, err := i.durations.Duration(uri)
		if err != nil {
			logger.Log.Warn().
				Err(err).
				Str("source", uri).
				Msg("Could not measure source")
			continue
		}
		exp.Durations[uri] = d
	}
}
