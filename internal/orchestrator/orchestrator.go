// Package orchestrator drives one viewing session. It watches the playback
// clock against the schedule, opens question and branch interruptions,
// diverts playback to branch clips and returns to the interrupted source.
package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/stwalsh4118/branchreel/internal/branch"
	"github.com/stwalsh4118/branchreel/internal/config"
	"github.com/stwalsh4118/branchreel/internal/journey"
	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/models"
	"github.com/stwalsh4118/branchreel/internal/playback"
	"github.com/stwalsh4118/branchreel/internal/schedule"
	"github.com/stwalsh4118/branchreel/internal/timeline"
)

// Executor runs deferred work for an orchestrator. Every function it calls
// back must run on the goroutine that owns the orchestrator.
type Executor interface {
	// AfterFunc runs fn after d.
	AfterFunc(d time.Duration, fn func())
	// Async runs work elsewhere, then runs the function it returns on the
	// owning goroutine.
	Async(work func(ctx context.Context) func())
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers the transition observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// WithNow overrides the wall clock used for event and completion times.
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// checkpoint is the state just before a branch fired, kept for revisits.
type checkpoint struct {
	answers    int
	journey    int
	fired      int
	cumulative float64
}

type firedTrigger struct {
	question bool
	id       int
}

type cachedResolution struct {
	resolution branch.Resolution
	input      []string
}

// Orchestrator is the per-session playback state machine.
//
// It is not safe for concurrent use: methods, clock callbacks and executor
// callbacks must all run on one goroutine.
type Orchestrator struct {
	id       string
	registry *schedule.Registry
	clock    playback.Clock
	resolver *branch.Resolver
	exec     Executor
	timing   config.PlaybackConfig
	observer Observer
	log      zerolog.Logger
	now      func() time.Time

	state   State
	status  *SessionError
	started bool

	firedQuestions schedule.FiredSet
	firedBranches  schedule.FiredSet
	firedLog       []firedTrigger
	answers        []models.Answer
	journey        *journey.Recorder
	tracker        timeline.Tracker

	stack         []models.ReturnFrame
	pending       *models.PendingSwitch
	pendingOption models.BranchOption

	activeQuestion *models.Question
	activeBranch   *models.BranchDefinition
	activeOptions  branch.Resolution
	firedAt        float64

	checkpoints map[int]checkpoint
	resolved    map[int]cachedResolution
	inflight    map[int]int
	// generation is bumped by revisits; deferred callbacks captured under an
	// older generation are dropped.
	generation int

	handoff *models.Handoff
}

// New creates an orchestrator for one session and registers it as the
// clock's listener. A nil resolver always shows declared options.
func New(id string, registry *schedule.Registry, clock playback.Clock, resolver *branch.Resolver, exec Executor, timing config.PlaybackConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		id:             id,
		registry:       registry,
		clock:          clock,
		resolver:       resolver,
		exec:           exec,
		timing:         timing,
		log:            logger.ForSession(id),
		now:            time.Now,
		state:          StatePlaying,
		firedQuestions: schedule.FiredSet{},
		firedBranches:  schedule.FiredSet{},
		journey:        journey.NewRecorder(),
		checkpoints:    make(map[int]checkpoint),
		resolved:       make(map[int]cachedResolution),
		inflight:       make(map[int]int),
	}
	for _, opt := range opts {
		opt(o)
	}
	clock.SetListener(o)
	return o
}

// ID returns the session id.
func (o *Orchestrator) ID() string {
	return o.id
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Status returns the session-level error, nil unless stalled.
func (o *Orchestrator) Status() *SessionError {
	return o.status
}

// Handoff returns the completion handoff once the session has completed.
func (o *Orchestrator) Handoff() (models.Handoff, bool) {
	if o.handoff == nil {
		return models.Handoff{}, false
	}
	return *o.handoff, true
}

// Start mounts the main source and begins playback.
func (o *Orchestrator) Start() error {
	if o.started {
		return invalidState("session already started")
	}
	o.started = true

	main := o.registry.MainSource()
	o.clock.Mount(main)
	o.tracker.Reset(0, 0)
	o.clock.Play()

	o.log.Info().
		Str("source", main).
		Int("questions", o.registry.QuestionCount()).
		Int("branches", len(o.registry.Branches())).
		Msg("Session started")

	// Without questions the first branch is eligible from the start.
	if o.registry.QuestionCount() == 0 {
		o.prefetchNext()
	}
	return nil
}

// OnTick implements playback.Listener.
func (o *Orchestrator) OnTick(local float64) {
	if o.state.Terminal() {
		return
	}
	o.tracker.Observe(local)

	if o.state != StatePlaying || len(o.stack) > 0 {
		return
	}

	if o.pending != nil {
		switch {
		case o.registry.InWindow(local, o.pending.SwitchOffset):
			o.divert(o.pending.BranchID, o.pendingOption, local, o.timing.SwitchGrace)
			return
		case local >= o.pending.SwitchOffset+o.registry.Window():
			o.log.Warn().
				Int("branch_id", o.pending.BranchID).
				Int("option_id", o.pending.OptionID).
				Float64("switch_offset", o.pending.SwitchOffset).
				Float64("local_time", local).
				Msg("Switch window passed, dropping pending switch")
			o.pending = nil
		}
	}

	if q, ok := o.registry.FindDueQuestion(local, o.firedQuestions); ok {
		o.showQuestion(q, local)
		return
	}
	if b, ok := o.registry.FindDueBranch(local, o.firedBranches, o.answers); ok {
		o.showBranch(b, local)
	}
}

// OnEnded implements playback.Listener.
func (o *Orchestrator) OnEnded() {
	if o.state.Terminal() {
		return
	}
	if len(o.stack) == 0 {
		o.complete()
		return
	}

	end := o.clock.CurrentTime()
	frame := o.stack[len(o.stack)-1]
	o.stack = o.stack[:len(o.stack)-1]

	o.clock.Mount(frame.SourceURI)
	o.clock.Seek(frame.ResumeOffset)
	o.tracker.StartSegment(end, frame.ResumeOffset)

	if len(o.stack) > 0 {
		o.state = StateDivertedPlayback
	} else {
		o.state = StatePlaying
	}

	o.log.Info().
		Str("source", frame.SourceURI).
		Float64("resume_offset", frame.ResumeOffset).
		Float64("cumulative_time", o.tracker.Cumulative()).
		Int("depth", len(o.stack)).
		Msg("Returned from diversion")
	o.emit(EventReturned, map[string]any{
		"source":          frame.SourceURI,
		"resume_offset":   frame.ResumeOffset,
		"cumulative_time": o.tracker.Cumulative(),
		"branch_id":       frame.BranchID,
		"option_id":       frame.OptionID,
		"depth":           len(o.stack),
	})
	o.resumeAfter(o.timing.ReturnGrace)
}

// OnLoadFailed implements playback.Listener.
func (o *Orchestrator) OnLoadFailed(err error) {
	if o.state.Terminal() {
		return
	}
	source := o.clock.Source()
	o.clock.Pause()
	o.pending = nil
	o.status = &SessionError{
		Kind:    KindMediaLoad,
		Message: fmt.Sprintf("cannot play %s", source),
		Cause:   err,
	}
	o.state = StateStalled

	o.log.Error().
		Err(err).
		Str("source", source).
		Int("depth", len(o.stack)).
		Msg("Media failed to load, session stalled")
	o.emit(EventStalled, map[string]any{
		"source": source,
		"error":  err.Error(),
	})
}

// SubmitAnswer answers the question currently shown. Multi-select answers
// are only accepted for questions that allow them.
func (o *Orchestrator) SubmitAnswer(answer models.Answer) error {
	if o.state != StateInterruptedByQuestion || o.activeQuestion == nil {
		return invalidState("no question is waiting for an answer")
	}
	q := o.activeQuestion
	normalized, err := normalizeAnswer(q, answer)
	if err != nil {
		return err
	}

	o.answers = append(o.answers, normalized)
	o.journey.RecordQuestion(q.Prompt, normalized, o.firedAt)
	o.activeQuestion = nil
	o.state = StatePlaying

	o.log.Info().
		Int("question_id", q.ID).
		Str("answer", normalized.Text()).
		Int("answered", len(o.answers)).
		Msg("Question answered")
	o.emit(EventQuestionAnswered, map[string]any{
		"question_id": q.ID,
		"answer":      normalized,
		"answered":    len(o.answers),
		"total":       o.registry.QuestionCount(),
	})

	if len(o.answers) == o.registry.QuestionCount() {
		o.prefetchNext()
	}
	o.resumeAfter(o.timing.QuestionResumeGrace)
	return nil
}

// SelectOption resolves the branch currently shown with one of the options
// it offered.
func (o *Orchestrator) SelectOption(optionID int) error {
	if o.state != StateInterruptedByBranch || o.activeBranch == nil {
		return invalidState("no branch is waiting for a choice")
	}
	b := o.activeBranch
	idx := slices.IndexFunc(o.activeOptions.Options, func(opt models.BranchOption) bool {
		return opt.ID == optionID
	})
	if idx < 0 {
		return invalidInput("option %d is not offered at branch %d", optionID, b.ID)
	}
	opt := o.activeOptions.Options[idx]
	local := o.clock.CurrentTime()

	o.journey.RecordBranch(b.Title, opt.Text, o.firedAt)
	o.activeBranch = nil
	o.activeOptions = branch.Resolution{}
	o.state = StatePlaying
	o.prefetchNext()

	fields := map[string]any{
		"branch_id": b.ID,
		"option_id": opt.ID,
		"text":      opt.Text,
	}

	switch {
	case opt.IsNoOp():
		fields["path"] = "continue"
		o.log.Info().Int("branch_id", b.ID).Int("option_id", opt.ID).Msg("Branch resolved, continuing current source")
		o.emit(EventBranchSelected, fields)
		o.resumeAfter(o.timing.BranchResumeGrace)

	case opt.IsDeferred():
		if o.pending != nil {
			o.log.Warn().
				Int("branch_id", o.pending.BranchID).
				Int("option_id", o.pending.OptionID).
				Msg("Replacing unreached pending switch")
		}
		o.pending = &models.PendingSwitch{
			BranchID:     b.ID,
			OptionID:     opt.ID,
			SwitchOffset: opt.SwitchOffset.Value,
		}
		o.pendingOption = opt
		fields["path"] = "deferred"
		o.log.Info().
			Int("branch_id", b.ID).
			Int("option_id", opt.ID).
			Float64("switch_offset", opt.SwitchOffset.Value).
			Msg("Branch resolved, switch armed")
		o.emit(EventBranchSelected, fields)
		o.emit(EventSwitchArmed, map[string]any{
			"branch_id":     b.ID,
			"option_id":     opt.ID,
			"switch_offset": opt.SwitchOffset.Value,
		})
		o.resumeAfter(o.timing.BranchResumeGrace)

	default:
		fields["path"] = "immediate"
		o.emit(EventBranchSelected, fields)
		o.divert(b.ID, opt, local, o.timing.BranchResumeGrace)
	}
	return nil
}

// SeekAllowed reports whether the viewer may move the playhead: every
// question answered, no diversion active and no interruption shown.
func (o *Orchestrator) SeekAllowed() bool {
	return o.state == StatePlaying &&
		len(o.stack) == 0 &&
		len(o.answers) == o.registry.QuestionCount()
}

// Seek moves the playhead on the main source. Triggers that already fired
// stay fired.
func (o *Orchestrator) Seek(seconds float64) error {
	if !o.SeekAllowed() {
		return invalidState("seeking requires every question answered and no active diversion")
	}
	if seconds < 0 {
		return invalidInput("seek position %.3f is negative", seconds)
	}

	from := o.clock.CurrentTime()
	o.clock.Seek(seconds)
	to := o.clock.CurrentTime()
	o.tracker.StartSegment(from, to)

	o.log.Debug().Float64("from", from).Float64("to", to).Msg("Seeked")
	o.emit(EventSeeked, map[string]any{"from": from, "to": to})
	return nil
}

// Revisit rewinds to a branch that was already shown. Every answer, journey
// entry and fired trigger recorded from that branch on is discarded, any
// diversion or pending switch is abandoned, and the branch is shown again at
// its trigger time on the main source.
func (o *Orchestrator) Revisit(branchID int) error {
	if o.state.Terminal() {
		return invalidState("session is %s", o.state)
	}
	cp, ok := o.checkpoints[branchID]
	if !ok {
		return invalidInput("branch %d has not been shown", branchID)
	}
	b, ok := o.registry.Branch(branchID)
	if !ok {
		return invalidInput("unknown branch %d", branchID)
	}

	o.generation++
	o.answers = o.answers[:cp.answers:cp.answers]
	o.journey.Truncate(cp.journey)
	for _, f := range o.firedLog[cp.fired:] {
		if f.question {
			o.firedQuestions.Remove(f.id)
			continue
		}
		o.firedBranches.Remove(f.id)
		delete(o.checkpoints, f.id)
	}
	o.firedLog = o.firedLog[:cp.fired:cp.fired]
	o.stack = nil
	o.pending = nil
	o.activeQuestion = nil
	o.activeBranch = nil

	o.clock.Pause()
	main := o.registry.MainSource()
	if o.clock.Source() != main {
		o.clock.Mount(main)
	}
	o.clock.Seek(b.TriggerTime)
	o.tracker.Reset(cp.cumulative, b.TriggerTime)
	o.state = StatePlaying

	o.log.Info().
		Int("branch_id", b.ID).
		Int("answers", len(o.answers)).
		Int("journey", o.journey.Len()).
		Msg("Revisiting branch")
	o.emit(EventRevisited, map[string]any{
		"branch_id":    b.ID,
		"trigger_time": b.TriggerTime,
	})

	o.showBranch(b, b.TriggerTime)
	return nil
}

func (o *Orchestrator) showQuestion(q *models.Question, local float64) {
	o.clock.Pause()
	o.firedQuestions.Add(q.ID)
	o.firedLog = append(o.firedLog, firedTrigger{question: true, id: q.ID})
	o.activeQuestion = q
	o.firedAt = local
	o.state = StateInterruptedByQuestion

	o.log.Info().
		Int("question_id", q.ID).
		Float64("local_time", local).
		Msg("Question shown")
	o.emit(EventQuestionShown, map[string]any{
		"question_id":    q.ID,
		"prompt":         q.Prompt,
		"options":        q.Options,
		"allow_multiple": q.AllowMultiple,
		"local_time":     local,
	})
}

func (o *Orchestrator) showBranch(b *models.BranchDefinition, local float64) {
	o.clock.Pause()
	o.checkpoints[b.ID] = checkpoint{
		answers:    len(o.answers),
		journey:    o.journey.Len(),
		fired:      len(o.firedLog),
		cumulative: o.tracker.At(local),
	}
	o.firedBranches.Add(b.ID)
	o.firedLog = append(o.firedLog, firedTrigger{id: b.ID})
	o.activeBranch = b
	o.firedAt = local

	// A resolution still in flight never replaces the options on screen.
	o.activeOptions = branch.Declared(b)
	if c, ok := o.resolved[b.ID]; ok && slices.Equal(c.input, o.selectedSoFar()) {
		o.activeOptions = c.resolution
	}
	o.state = StateInterruptedByBranch

	o.log.Info().
		Int("branch_id", b.ID).
		Float64("local_time", local).
		Int("options", len(o.activeOptions.Options)).
		Bool("filtered", o.activeOptions.Filtered).
		Msg("Branch shown")
	view := newBranchView(b, o.activeOptions)
	o.emit(EventBranchShown, map[string]any{
		"branch_id":  b.ID,
		"title":      b.Title,
		"options":    view.Options,
		"filtered":   view.Filtered,
		"local_time": local,
	})
}

// divert pushes a return frame and mounts the option's clip.
func (o *Orchestrator) divert(branchID int, opt models.BranchOption, local float64, grace time.Duration) {
	frame := models.ReturnFrame{
		SourceURI:      o.clock.Source(),
		LocalTime:      local,
		CumulativeTime: o.tracker.At(local),
		ResumeOffset:   opt.ResumeOffset.Value,
		BranchID:       branchID,
		OptionID:       opt.ID,
	}
	o.stack = append(o.stack, frame)
	// A switch armed at another branch still waits for its offset.
	if o.pending != nil && o.pending.BranchID == branchID {
		o.pending = nil
	}

	o.clock.Pause()
	o.clock.Mount(opt.VideoSource)
	if opt.StartOffset > 0 {
		o.clock.Seek(opt.StartOffset)
	}
	o.tracker.StartSegment(local, opt.StartOffset)
	o.state = StateDivertedPlayback

	o.log.Info().
		Int("branch_id", branchID).
		Int("option_id", opt.ID).
		Str("source", opt.VideoSource).
		Float64("local_time", local).
		Int("depth", len(o.stack)).
		Msg("Diverted to branch clip")
	o.emit(EventDiverted, map[string]any{
		"branch_id":    branchID,
		"option_id":    opt.ID,
		"source":       opt.VideoSource,
		"start_offset": opt.StartOffset,
		"frame":        frame,
		"depth":        len(o.stack),
	})
	o.resumeAfter(grace)
}

func (o *Orchestrator) complete() {
	o.state = StateCompleted
	o.pending = nil
	o.handoff = &models.Handoff{
		Answers:     slices.Clone(o.answers),
		Journey:     o.journey.Entries(),
		CompletedAt: o.now(),
	}

	o.log.Info().
		Int("answers", len(o.handoff.Answers)).
		Int("journey", len(o.handoff.Journey)).
		Float64("cumulative_time", o.tracker.Cumulative()).
		Msg("Session completed")
	o.emit(EventCompleted, map[string]any{
		"answers": len(o.handoff.Answers),
		"journey": len(o.handoff.Journey),
	})
}

// resumeAfter plays the clock after d unless the session moved on meanwhile.
func (o *Orchestrator) resumeAfter(d time.Duration) {
	gen := o.generation
	o.exec.AfterFunc(d, func() {
		if gen != o.generation || o.state.Terminal() || o.interrupted() {
			return
		}
		o.clock.Play()
	})
}

func (o *Orchestrator) interrupted() bool {
	return o.state == StateInterruptedByQuestion || o.state == StateInterruptedByBranch
}

// prefetchNext resolves the options of the next eligible branch ahead of its
// trigger. Results land in the cache only if no revisit happened meanwhile.
func (o *Orchestrator) prefetchNext() {
	if o.resolver == nil || len(o.answers) < o.registry.QuestionCount() {
		return
	}
	b, ok := o.registry.NextBranch(o.firedBranches, o.answers)
	if !ok {
		return
	}
	selected := o.selectedSoFar()
	if c, ok := o.resolved[b.ID]; ok && slices.Equal(c.input, selected) {
		return
	}
	if gen, ok := o.inflight[b.ID]; ok && gen == o.generation {
		return
	}

	gen := o.generation
	o.inflight[b.ID] = gen
	def := *b
	resolver := o.resolver
	o.log.Debug().Int("branch_id", def.ID).Msg("Prefetching branch options")

	o.exec.Async(func(ctx context.Context) func() {
		res := resolver.Resolve(ctx, &def, selected)
		return func() {
			if o.inflight[def.ID] == gen {
				delete(o.inflight, def.ID)
			}
			if gen != o.generation {
				o.log.Debug().Int("branch_id", def.ID).Msg("Discarding stale branch resolution")
				return
			}
			o.resolved[def.ID] = cachedResolution{resolution: res, input: selected}
		}
	})
}

// selectedSoFar is the plain-text record of every answer and chosen branch
// option, in order.
func (o *Orchestrator) selectedSoFar() []string {
	out := models.FlattenAnswers(o.answers)
	for _, e := range o.journey.Entries() {
		if e.Kind == models.JourneyBranch {
			out = append(out, e.ChosenText)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func normalizeAnswer(q *models.Question, a models.Answer) (models.Answer, error) {
	if a.IsEmpty() {
		return models.Answer{}, &SessionError{
			Kind:    KindInvalidInput,
			Message: fmt.Sprintf("question %d", q.ID),
			Cause:   models.ErrEmptyAnswer,
		}
	}
	values := a.Values()
	if len(values) > 1 && !q.AllowMultiple {
		return models.Answer{}, invalidInput("question %d accepts a single answer", q.ID)
	}
	for _, v := range values {
		if !q.HasOption(v) {
			return models.Answer{}, invalidInput("%q is not an option of question %d", v, q.ID)
		}
	}
	if q.AllowMultiple {
		return models.MultiAnswer(values...), nil
	}
	return models.SingleAnswer(values[0]), nil
}
