// Package journey records the ordered path a viewer takes through an
// experience: every answered question and resolved branch.
package journey

import (
	"slices"

	"github.com/stwalsh4118/branchreel/internal/models"
)

// Recorder is an append-only journey log owned by one session.
type Recorder struct {
	entries []models.JourneyEntry
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordQuestion appends a resolved question.
func (r *Recorder) RecordQuestion(prompt string, answer models.Answer, at float64) {
	r.entries = append(r.entries, models.JourneyEntry{
		Kind:             models.JourneyQuestion,
		Title:            prompt,
		ChosenText:       answer.Text(),
		TimestampSeconds: at,
	})
}

// RecordBranch appends a resolved branch with the option text as shown.
func (r *Recorder) RecordBranch(title, chosen string, at float64) {
	r.entries = append(r.entries, models.JourneyEntry{
		Kind:             models.JourneyBranch,
		Title:            title,
		ChosenText:       chosen,
		TimestampSeconds: at,
	})
}

// Len returns the number of entries.
func (r *Recorder) Len() int {
	return len(r.entries)
}

// Entries returns a copy of the journey in chronological order.
func (r *Recorder) Entries() []models.JourneyEntry {
	return slices.Clone(r.entries)
}

// Truncate drops every entry after the first n. Only used when rewinding to
// an earlier branch.
func (r *Recorder) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(r.entries) {
		r.entries = r.entries[:n:n]
	}
}

// ChosenTexts returns the chosen text of each entry, the plain-text record
// of the viewer's choices so far.
func (r *Recorder) ChosenTexts() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.ChosenText)
	}
	return out
}
