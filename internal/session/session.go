// Package session runs playback sessions. Each session owns one orchestrator
// and one virtual clock, driven from a dedicated event-loop goroutine so that
// ticks, grace timers, collaborator results and API calls never overlap.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stwalsh4118/branchreel/internal/branch"
	"github.com/stwalsh4118/branchreel/internal/collab"
	"github.com/stwalsh4118/branchreel/internal/config"
	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/models"
	"github.com/stwalsh4118/branchreel/internal/orchestrator"
	"github.com/stwalsh4118/branchreel/internal/playback"
	"github.com/stwalsh4118/branchreel/internal/schedule"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionStopped  = errors.New("session has been stopped")
	ErrNotCompleted    = errors.New("session has not completed")
	ErrManagerStopped  = errors.New("session manager has been stopped")
)

// EventSummaryReady is published once the personality profile is available.
const EventSummaryReady orchestrator.EventType = "summary_ready"

const subscriberBuffer = 64

// Summary is the completion handoff plus the personality profile, which is
// nil until the summary collaborator (or the fallback) has answered.
type Summary struct {
	Handoff models.Handoff             `json:"handoff"`
	Profile *models.PersonalityProfile `json:"profile,omitempty"`
	Ready   bool                       `json:"ready"`
}

// Session is one viewer's run through an experience.
type Session struct {
	id           string
	experienceID string
	createdAt    time.Time
	log          zerolog.Logger

	orch  *orchestrator.Orchestrator
	clock *playback.VirtualClock
	tick  time.Duration

	summarizer     collab.Summarizer
	summaryTimeout time.Duration

	cmds     chan func()
	stopCh   chan struct{}
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu          sync.Mutex
	lastAccess  time.Time
	subscribers map[int]chan orchestrator.Event
	nextSub     int
	handoff     *models.Handoff
	profile     *models.PersonalityProfile
}

func newSession(
	id string,
	registry *schedule.Registry,
	durations playback.DurationSource,
	resolver *branch.Resolver,
	summarizer collab.Summarizer,
	pb config.PlaybackConfig,
	summaryTimeout time.Duration,
) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	s := &Session{
		id:             id,
		experienceID:   registry.Experience().ID,
		createdAt:      now,
		log:            logger.ForSession(id),
		clock:          playback.NewVirtualClock(durations),
		tick:           pb.TickInterval,
		summarizer:     summarizer,
		summaryTimeout: summaryTimeout,
		cmds:           make(chan func()),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
		lastAccess:     now,
		subscribers:    make(map[int]chan orchestrator.Event),
	}
	s.orch = orchestrator.New(id, registry, s.clock, resolver, s, pb, orchestrator.WithObserver(s.onEvent))
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// ExperienceID returns the id of the experience being played.
func (s *Session) ExperienceID() string {
	return s.experienceID
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// start launches the event loop and begins playback.
func (s *Session) start() error {
	go s.run()
	return s.do(s.orch.Start)
}

// run is the session's event loop. The orchestrator is only ever touched
// from here.
func (s *Session) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	last := time.Now()

	s.log.Debug().Dur("tick", s.tick).Msg("Session loop started")

	for {
		select {
		case <-s.stopCh:
			s.log.Debug().Msg("Session loop stopping")
			return
		case fn := <-s.cmds:
			fn()
		case now := <-ticker.C:
			s.clock.Advance(now.Sub(last))
			last = now
		}
	}
}

// post hands fn to the event loop. It reports false once the session stopped.
func (s *Session) post(fn func()) bool {
	select {
	case s.cmds <- fn:
		return true
	case <-s.stopCh:
		return false
	}
}

// do runs fn on the event loop and waits for its result.
func (s *Session) do(fn func() error) error {
	s.touch()
	errCh := make(chan error, 1)
	if !s.post(func() { errCh <- fn() }) {
		return ErrSessionStopped
	}
	return <-errCh
}

// AfterFunc implements orchestrator.Executor.
func (s *Session) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		s.post(fn)
	})
}

// Async implements orchestrator.Executor. Work is cancelled when the session
// stops; its result is dropped if the loop is gone.
func (s *Session) Async(work func(ctx context.Context) func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		apply := work(s.ctx)
		if apply != nil {
			s.post(apply)
		}
	}()
}

// onEvent runs on the event loop for every orchestrator transition.
func (s *Session) onEvent(e orchestrator.Event) {
	if e.Type == orchestrator.EventCompleted {
		if h, ok := s.orch.Handoff(); ok {
			s.mu.Lock()
			s.handoff = &h
			s.mu.Unlock()
			s.summarize(h)
		}
	}
	s.broadcast(e)
}

// summarize requests the personality profile without holding up the loop.
func (s *Session) summarize(h models.Handoff) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, s.summaryTimeout)
		defer cancel()
		profile := collab.Profile(ctx, s.summarizer, h)

		s.mu.Lock()
		s.profile = &profile
		s.mu.Unlock()

		s.log.Info().Str("user_type", profile.UserType).Msg("Session summary ready")
		s.broadcast(orchestrator.Event{
			Type:   EventSummaryReady,
			State:  orchestrator.StateCompleted,
			At:     time.Now(),
			Fields: map[string]any{"profile": profile},
		})
	}()
}

func (s *Session) broadcast(e orchestrator.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- e:
		default:
			s.log.Warn().
				Int("subscriber", id).
				Str("event", string(e.Type)).
				Msg("Subscriber too slow, dropping event")
		}
	}
}

// Subscribe streams future events. The returned function unsubscribes; the
// channel is also closed when the session stops.
func (s *Session) Subscribe() (<-chan orchestrator.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan orchestrator.Event, subscriberBuffer)
	select {
	case <-s.stopCh:
		close(ch)
		return ch, func() {}
	default:
	}

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(c)
		}
	}
}

// Snapshot returns the orchestrator's current state.
func (s *Session) Snapshot() (orchestrator.Snapshot, error) {
	var snap orchestrator.Snapshot
	err := s.do(func() error {
		snap = s.orch.Snapshot()
		return nil
	})
	return snap, err
}

// Answer submits an answer to the question on screen.
func (s *Session) Answer(answer models.Answer) error {
	return s.do(func() error { return s.orch.SubmitAnswer(answer) })
}

// Choose selects an option of the branch on screen.
func (s *Session) Choose(optionID int) error {
	return s.do(func() error { return s.orch.SelectOption(optionID) })
}

// Seek moves the playhead on the main source.
func (s *Session) Seek(seconds float64) error {
	return s.do(func() error { return s.orch.Seek(seconds) })
}

// Revisit rewinds to a branch that was already shown.
func (s *Session) Revisit(branchID int) error {
	return s.do(func() error { return s.orch.Revisit(branchID) })
}

// Summary returns the completion handoff and, once ready, the profile.
func (s *Session) Summary() (Summary, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handoff == nil {
		return Summary{}, ErrNotCompleted
	}
	return Summary{
		Handoff: *s.handoff,
		Profile: s.profile,
		Ready:   s.profile != nil,
	}, nil
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

// IdleDuration returns how long since the session was last used.
func (s *Session) IdleDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastAccess)
}

// ShouldCleanup reports whether nobody is watching and the session has been
// idle longer than grace.
func (s *Session) ShouldCleanup(grace time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) == 0 && time.Since(s.lastAccess) > grace
}

// Stop ends the event loop, cancels outstanding collaborator calls and closes
// every subscription. Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.done
		s.cancel()
		s.wg.Wait()

		s.mu.Lock()
		for id, ch := range s.subscribers {
			delete(s.subscribers, id)
			close(ch)
		}
		s.mu.Unlock()

		s.log.Info().Msg("Session stopped")
	})
}
