// Package models defines the domain types shared by the playback components:
// schedule definitions, answers, return frames and journey entries.
package models

import (
	"slices"
)

// DirectorsChoiceTag is the reserved tag marking a branch option that keeps
// playing the current source instead of diverting.
const DirectorsChoiceTag = "Director's Choice"

// Seconds is an optional offset in seconds with an explicit presence flag.
type Seconds struct {
	Value float64
	Set   bool
}

// At returns a present offset.
func At(value float64) Seconds {
	return Seconds{Value: value, Set: true}
}

// Ptr returns the offset as a pointer, nil when absent.
func (s Seconds) Ptr() *float64 {
	if !s.Set {
		return nil
	}
	v := s.Value
	return &v
}

// SecondsFromPtr converts a pointer into an optional offset.
func SecondsFromPtr(p *float64) Seconds {
	if p == nil {
		return Seconds{}
	}
	return At(*p)
}

// Question is a personality question shown at TriggerTime on the main source.
type Question struct {
	ID            int      `json:"id"`
	TriggerTime   float64  `json:"trigger_time"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	AllowMultiple bool     `json:"allow_multiple"`
}

// HasOption reports whether text is one of the declared options.
func (q *Question) HasOption(text string) bool {
	return slices.Contains(q.Options, text)
}

// Condition decides whether a branch is eligible given the answers so far.
type Condition func(answers []Answer) bool

// ConditionSpec is the declarative form of a Condition: the branch is eligible
// when the answer to QuestionID contains any of AnyOf.
type ConditionSpec struct {
	QuestionID int      `json:"question_id" yaml:"question_id"`
	AnyOf      []string `json:"any_of" yaml:"any_of"`
}

// BranchOption is one selectable path of a branch point.
type BranchOption struct {
	ID            int
	Text          string
	IsRecommended bool
	VideoSource   string
	StartOffset   float64
	// SwitchOffset defers the diversion until the main clock reaches it.
	SwitchOffset Seconds
	// ResumeOffset is where the pre-branch source resumes after the diversion.
	ResumeOffset Seconds
	Tags         []string
}

// IsNoOp reports whether the option keeps playback on the current source.
func (o *BranchOption) IsNoOp() bool {
	return slices.Contains(o.Tags, DirectorsChoiceTag)
}

// IsDeferred reports whether the option's switch waits for SwitchOffset.
func (o *BranchOption) IsDeferred() bool {
	return o.SwitchOffset.Set
}

// BranchDefinition is a narrative branch point.
type BranchDefinition struct {
	ID          int
	TriggerTime float64
	Title       string
	Options     []BranchOption
	// Condition is optional; nil means always eligible.
	Condition     Condition
	ConditionSpec *ConditionSpec
}

// Option returns the option with the given id.
func (b *BranchDefinition) Option(id int) (*BranchOption, bool) {
	for i := range b.Options {
		if b.Options[i].ID == id {
			return &b.Options[i], true
		}
	}
	return nil, false
}

// Eligible evaluates the branch condition.
func (b *BranchDefinition) Eligible(answers []Answer) bool {
	if b.Condition == nil {
		return true
	}
	return b.Condition(answers)
}

// Experience is a complete schedule: main source plus its interruptions.
type Experience struct {
	ID         string
	Name       string
	MainSource string
	Questions  []Question
	Branches   []BranchDefinition
	// Durations holds known media lengths in seconds, keyed by source URI.
	Durations map[string]float64
}

// Sources lists the main source followed by every distinct option clip.
func (e *Experience) Sources() []string {
	sources := []string{e.MainSource}
	for _, b := range e.Branches {
		for _, o := range b.Options {
			if o.VideoSource != "" && !slices.Contains(sources, o.VideoSource) {
				sources = append(sources, o.VideoSource)
			}
		}
	}
	return sources
}
