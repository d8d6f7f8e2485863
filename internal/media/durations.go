package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/models"
	"github.com/stwalsh4118/branchreel/internal/playback"
)

// Store persists known media durations.
type Store interface {
	GetByURI(ctx context.Context, uri string) (*models.MediaRecord, error)
	Upsert(ctx context.Context, media *models.MediaRecord) error
}

// ProbeFunc measures a source, ProbeDuration in production.
type ProbeFunc func(ctx context.Context, uri string) (float64, error)

// Catalog resolves durations from memory, then the store, then FFprobe.
// Probed lengths are written back to the store. Safe for concurrent use.
type Catalog struct {
	store   Store
	probe   ProbeFunc
	timeout time.Duration

	mu    sync.RWMutex
	known map[string]float64
}

// NewCatalog creates a duration catalog. probe may be nil to disable FFprobe.
func NewCatalog(store Store, probe ProbeFunc, timeout time.Duration) *Catalog {
	return &Catalog{
		store:   store,
		probe:   probe,
		timeout: timeout,
		known:   make(map[string]float64),
	}
}

// Duration implements playback.DurationSource.
func (c *Catalog) Duration(uri string) (float64, error) {
	c.mu.RLock()
	d, ok := c.known[uri]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if c.store != nil {
		if rec, err := c.store.GetByURI(ctx, uri); err == nil && rec.Duration > 0 {
			c.remember(uri, rec.Duration)
			return rec.Duration, nil
		}
	}

	if c.probe == nil {
		return 0, fmt.Errorf("%s: %w", uri, playback.ErrUnknownDuration)
	}

	d, err := c.probe(ctx, uri)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", uri, playback.ErrUnknownDuration, err)
	}
	c.remember(uri, d)

	if c.store != nil {
		if err := c.store.Upsert(ctx, models.NewMediaRecord(uri, d)); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("source", uri).
				Msg("Failed to cache probed duration")
		}
	}
	return d, nil
}

// Preload seeds durations known up front, such as an experience's media hints.
func (c *Catalog) Preload(durations map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for uri, d := range durations {
		if d > 0 {
			c.known[uri] = d
		}
	}
}

func (c *Catalog) remember(uri string, d float64) {
	c.mu.Lock()
	c.known[uri] = d
	c.mu.Unlock()
}
