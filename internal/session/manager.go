package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stwalsh4118/branchreel/internal/branch"
	"github.com/stwalsh4118/branchreel/internal/collab"
	"github.com/stwalsh4118/branchreel/internal/config"
	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/models"
	"github.com/stwalsh4118/branchreel/internal/playback"
	"github.com/stwalsh4118/branchreel/internal/schedule"
)

// ExperienceSource loads complete experiences.
type ExperienceSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Experience, error)
}

// Manager owns every live session and stops idle ones in the background.
type Manager struct {
	experiences ExperienceSource
	durations   playback.DurationSource
	resolver    *branch.Resolver
	summarizer  collab.Summarizer

	playback       config.PlaybackConfig
	config         config.SessionsConfig
	summaryTimeout time.Duration

	sessions      map[string]*Session
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	cleanupDone   chan struct{}
	mu            sync.RWMutex
	stopped       bool
}

// NewManager creates a session manager. durations backs up each experience's
// own duration hints and may be nil.
func NewManager(
	experiences ExperienceSource,
	durations playback.DurationSource,
	resolver *branch.Resolver,
	summarizer collab.Summarizer,
	cfg *config.Config,
) *Manager {
	return &Manager{
		experiences:    experiences,
		durations:      durations,
		resolver:       resolver,
		summarizer:     summarizer,
		playback:       cfg.Playback,
		config:         cfg.Sessions,
		summaryTimeout: cfg.Services.RequestTimeout,
		sessions:       make(map[string]*Session),
		stopChan:       make(chan struct{}),
		cleanupDone:    make(chan struct{}),
	}
}

// Start begins the idle-session cleanup loop.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}

	m.cleanupTicker = time.NewTicker(m.config.CleanupInterval)
	go m.runCleanupLoop()

	logger.Log.Info().
		Dur("cleanup_interval", m.config.CleanupInterval).
		Dur("grace_period", m.config.GracePeriod).
		Msg("Session manager started")

	return nil
}

// Stop shuts down the cleanup loop and every session.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	logger.Log.Info().Msg("Stopping session manager...")

	close(m.stopChan)
	if m.cleanupTicker != nil {
		<-m.cleanupDone
		m.cleanupTicker.Stop()
	}

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}

	logger.Log.Info().
		Int("stopped_sessions", len(sessions)).
		Msg("Session manager stopped")
}

// Create starts a new session on an experience.
func (m *Manager) Create(ctx context.Context, experienceID uuid.UUID) (*Session, error) {
	m.mu.RLock()
	stopped := m.stopped
	m.mu.RUnlock()
	if stopped {
		return nil, ErrManagerStopped
	}

	exp, err := m.experiences.GetByID(ctx, experienceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load experience: %w", err)
	}

	registry, err := schedule.NewRegistry(*exp, m.playback.TriggerWindow)
	if err != nil {
		return nil, err
	}

	durations := playback.ChainDurations{playback.StaticDurations(exp.Durations)}
	if m.durations != nil {
		durations = append(durations, m.durations)
	}

	id := uuid.NewString()
	s := newSession(id, registry, durations, m.resolver, m.summarizer, m.playback, m.summaryTimeout)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if err := s.start(); err != nil {
		m.remove(id)
		s.Stop()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	logger.Log.Info().
		Str("session_id", id).
		Str("experience_id", exp.ID).
		Str("experience", exp.Name).
		Msg("Session created")

	return s, nil
}

// Get retrieves a live session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete stops and removes a session.
func (m *Manager) Delete(id string) error {
	s, ok := m.remove(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.Stop()
	return nil
}

// List returns every live session.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) remove(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	return s, ok
}

// runCleanupLoop runs periodic cleanup of idle sessions
func (m *Manager) runCleanupLoop() {
	defer close(m.cleanupDone)

	logger.Log.Debug().Msg("Session cleanup loop started")

	for {
		select {
		case <-m.stopChan:
			logger.Log.Debug().Msg("Session cleanup loop stopping")
			return
		case <-m.cleanupTicker.C:
			m.performCleanup()
		}
	}
}

// performCleanup stops sessions idle past the grace period
func (m *Manager) performCleanup() {
	sessions := m.List()

	stoppedCount := 0
	for _, s := range sessions {
		if !s.ShouldCleanup(m.config.GracePeriod) {
			continue
		}
		logger.Log.Info().
			Str("session_id", s.ID()).
			Dur("idle_duration", s.IdleDuration()).
			Msg("Cleaning up idle session")
		if err := m.Delete(s.ID()); err == nil {
			stoppedCount++
		}
	}

	if stoppedCount > 0 {
		logger.Log.Info().
			Int("stopped_count", stoppedCount).
			Int("active_count", len(sessions)-stoppedCount).
			Msg("Cleanup cycle completed")
	}
}
