package orchestrator

import (
	"slices"

	"github.com/stwalsh4118/branchreel/internal/branch"
	"github.com/stwalsh4118/branchreel/internal/models"
)

// OptionView is a branch option as offered to the viewer.
type OptionView struct {
	ID            int      `json:"id"`
	Text          string   `json:"text"`
	IsRecommended bool     `json:"is_recommended"`
	Tags          []string `json:"tags,omitempty"`
}

// BranchView is the branch interruption currently on screen.
type BranchView struct {
	ID       int          `json:"id"`
	Title    string       `json:"title"`
	Options  []OptionView `json:"options"`
	Filtered bool         `json:"filtered"`
}

func newBranchView(b *models.BranchDefinition, res branch.Resolution) *BranchView {
	view := &BranchView{
		ID:       b.ID,
		Title:    b.Title,
		Options:  make([]OptionView, 0, len(res.Options)),
		Filtered: res.Filtered,
	}
	for _, o := range res.Options {
		view.Options = append(view.Options, OptionView{
			ID:            o.ID,
			Text:          o.Text,
			IsRecommended: o.IsRecommended,
			Tags:          slices.Clone(o.Tags),
		})
	}
	return view
}

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	ID             string                `json:"id"`
	ExperienceID   string                `json:"experience_id"`
	State          State                 `json:"state"`
	Source         string                `json:"source"`
	LocalTime      float64               `json:"local_time"`
	CumulativeTime float64               `json:"cumulative_time"`
	Playing        bool                  `json:"playing"`
	Depth          int                   `json:"stack_depth"`
	Stack          []models.ReturnFrame  `json:"stack"`
	PendingSwitch  *models.PendingSwitch `json:"pending_switch,omitempty"`
	Question       *models.Question      `json:"question,omitempty"`
	Branch         *BranchView           `json:"branch,omitempty"`
	Answers        []models.Answer       `json:"answers"`
	Journey        []models.JourneyEntry `json:"journey"`
	SeekAllowed    bool                  `json:"seek_allowed"`
	Error          *SessionError         `json:"error,omitempty"`
}

// Snapshot copies the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	s := Snapshot{
		ID:             o.id,
		ExperienceID:   o.registry.Experience().ID,
		State:          o.state,
		Source:         o.clock.Source(),
		LocalTime:      o.clock.CurrentTime(),
		CumulativeTime: o.tracker.Cumulative(),
		Playing:        o.clock.Playing(),
		Depth:          len(o.stack),
		Stack:          slices.Clone(o.stack),
		Answers:        slices.Clone(o.answers),
		Journey:        o.journey.Entries(),
		SeekAllowed:    o.SeekAllowed(),
		Error:          o.status,
	}
	if s.Stack == nil {
		s.Stack = []models.ReturnFrame{}
	}
	if s.Answers == nil {
		s.Answers = []models.Answer{}
	}
	if s.Journey == nil {
		s.Journey = []models.JourneyEntry{}
	}
	if o.pending != nil {
		p := *o.pending
		s.PendingSwitch = &p
	}
	if o.activeQuestion != nil {
		q := *o.activeQuestion
		q.Options = slices.Clone(q.Options)
		s.Question = &q
	}
	if o.activeBranch != nil {
		s.Branch = newBranchView(o.activeBranch, o.activeOptions)
	}
	return s
}
