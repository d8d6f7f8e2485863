package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/branchreel/internal/config"
	"github.com/stwalsh4118/branchreel/internal/models"
	"github.com/stwalsh4118/branchreel/internal/orchestrator"
	"github.com/stwalsh4118/branchreel/internal/schedule"
)

var errNoExperience = errors.New("no such experience")

type memoryExperiences map[uuid.UUID]models.Experience

func (m memoryExperiences) GetByID(_ context.Context, id uuid.UUID) (*models.Experience, error) {
	exp, ok := m[id]
	if !ok {
		return nil, errNoExperience
	}
	return &exp, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Playback: config.PlaybackConfig{
			TickInterval:  10 * time.Millisecond,
			TriggerWindow: 0.5,
		},
		Services: config.ServicesConfig{
			RequestTimeout: time.Second,
		},
		Sessions: config.SessionsConfig{
			GracePeriod:     time.Hour,
			CleanupInterval: time.Hour,
		},
	}
}

// shortExperience is a half-second main source with one question at 0.
func shortExperience(id uuid.UUID) models.Experience {
	return models.Experience{
		ID:         id.String(),
		Name:       "Short",
		MainSource: "/videos/short.mp4",
		Questions: []models.Question{
			{ID: 1, TriggerTime: 0, Prompt: "Pick one", Options: []string{"A", "B"}},
		},
		Durations: map[string]float64{"/videos/short.mp4": 0.5},
	}
}

func newTestManager(t *testing.T, experiences memoryExperiences, cfg *config.Config) *Manager {
	t.Helper()
	m := NewManager(experiences, nil, nil, nil, cfg)
	require.NoError(t, m.Start())
	t.Cleanup(m.Stop)
	return m
}

func waitForState(t *testing.T, s *Session, want orchestrator.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, err := s.Snapshot()
		return err == nil && snap.State == want
	}, 5*time.Second, 5*time.Millisecond, "session never reached %s", want)
}

func TestManager_SessionLifecycle(t *testing.T) {
	expID := uuid.New()
	m := newTestManager(t, memoryExperiences{expID: shortExperience(expID)}, testConfig())

	s, err := m.Create(context.Background(), expID)
	require.NoError(t, err)
	assert.Equal(t, expID.String(), s.ExperienceID())

	got, ok := m.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Count())

	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	waitForState(t, s, orchestrator.StateInterruptedByQuestion)
	_, err = s.Summary()
	assert.ErrorIs(t, err, ErrNotCompleted)

	assert.ErrorIs(t, s.Answer(models.SingleAnswer("C")), orchestrator.ErrInvalidInput)
	require.NoError(t, s.Answer(models.SingleAnswer("A")))

	waitForState(t, s, orchestrator.StateCompleted)

	require.Eventually(t, func() bool {
		summary, err := s.Summary()
		return err == nil && summary.Ready
	}, 5*time.Second, 5*time.Millisecond)

	summary, err := s.Summary()
	require.NoError(t, err)
	require.NotNil(t, summary.Profile)
	assert.Equal(t, models.FallbackProfile(), *summary.Profile, "no summarizer configured")
	require.Len(t, summary.Handoff.Journey, 1)
	assert.Equal(t, "A", summary.Handoff.Journey[0].ChosenText)

	var seen []orchestrator.EventType
	timeout := time.After(5 * time.Second)
	for len(seen) == 0 || seen[len(seen)-1] != EventSummaryReady {
		select {
		case e := <-events:
			seen = append(seen, e.Type)
		case <-timeout:
			t.Fatalf("summary_ready never published, saw %v", seen)
		}
	}
	assert.Contains(t, seen, orchestrator.EventQuestionAnswered)
	assert.Contains(t, seen, orchestrator.EventCompleted)
}

func TestManager_CreateUnknownExperience(t *testing.T) {
	m := newTestManager(t, memoryExperiences{}, testConfig())

	_, err := m.Create(context.Background(), uuid.New())
	assert.ErrorIs(t, err, errNoExperience)
	assert.Empty(t, m.List())
}

func TestManager_CreateRejectsInvalidSchedule(t *testing.T) {
	expID := uuid.New()
	exp := shortExperience(expID)
	exp.Branches = []models.BranchDefinition{{ID: 1, TriggerTime: 0.2, Title: "Empty"}}
	m := newTestManager(t, memoryExperiences{expID: exp}, testConfig())

	_, err := m.Create(context.Background(), expID)
	require.Error(t, err)
	assert.True(t, schedule.IsValidationError(err))
	assert.Empty(t, m.List())
}

func TestManager_DeleteStopsSession(t *testing.T) {
	expID := uuid.New()
	m := newTestManager(t, memoryExperiences{expID: shortExperience(expID)}, testConfig())

	s, err := m.Create(context.Background(), expID)
	require.NoError(t, err)
	events, _ := s.Subscribe()

	require.NoError(t, m.Delete(s.ID()))
	_, ok := m.Get(s.ID())
	assert.False(t, ok)
	assert.ErrorIs(t, m.Delete(s.ID()), ErrSessionNotFound)

	_, err = s.Snapshot()
	assert.ErrorIs(t, err, ErrSessionStopped)

	require.Eventually(t, func() bool {
		select {
		case _, open := <-events:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "subscription should be closed")
}

func TestManager_CleanupRespectsSubscribers(t *testing.T) {
	expID := uuid.New()
	cfg := testConfig()
	cfg.Sessions.GracePeriod = 20 * time.Millisecond
	m := newTestManager(t, memoryExperiences{expID: shortExperience(expID)}, cfg)

	idle, err := m.Create(context.Background(), expID)
	require.NoError(t, err)
	watched, err := m.Create(context.Background(), expID)
	require.NoError(t, err)
	_, unsubscribe := watched.Subscribe()
	defer unsubscribe()

	time.Sleep(50 * time.Millisecond)
	m.performCleanup()

	_, ok := m.Get(idle.ID())
	assert.False(t, ok, "idle session should be cleaned up")
	_, ok = m.Get(watched.ID())
	assert.True(t, ok, "watched session should be kept")
}

func TestManager_OperationsAfterStop(t *testing.T) {
	expID := uuid.New()
	m := NewManager(memoryExperiences{expID: shortExperience(expID)}, nil, nil, nil, testConfig())
	require.NoError(t, m.Start())

	s, err := m.Create(context.Background(), expID)
	require.NoError(t, err)

	m.Stop()
	m.Stop()

	assert.Empty(t, m.List())
	assert.ErrorIs(t, m.Start(), ErrManagerStopped)
	_, err = m.Create(context.Background(), expID)
	assert.ErrorIs(t, err, ErrManagerStopped)
	assert.ErrorIs(t, s.Answer(models.SingleAnswer("A")), ErrSessionStopped)
}
