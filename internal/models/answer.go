package models

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
)

// ErrEmptyAnswer is returned when an answer carries no selection.
var ErrEmptyAnswer = errors.New("answer has no selection")

// Answer is a question response: a single string or, for multi-select
// questions, a set of strings in selection order.
type Answer struct {
	values   []string
	multiple bool
}

// SingleAnswer creates a single-choice answer.
func SingleAnswer(value string) Answer {
	return Answer{values: []string{value}}
}

// MultiAnswer creates a multi-choice answer. Duplicates are dropped.
func MultiAnswer(values ...string) Answer {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return Answer{values: out, multiple: true}
}

// IsMultiple reports whether the answer is a set.
func (a Answer) IsMultiple() bool {
	return a.multiple
}

// Values returns a copy of the selected strings.
func (a Answer) Values() []string {
	return slices.Clone(a.values)
}

// IsEmpty reports whether nothing was selected.
func (a Answer) IsEmpty() bool {
	return len(a.values) == 0
}

// Contains reports whether value was selected.
func (a Answer) Contains(value string) bool {
	return slices.Contains(a.values, value)
}

// Text renders the answer for journey entries and prompts.
func (a Answer) Text() string {
	return strings.Join(a.values, ", ")
}

// MarshalJSON encodes single answers as a string and sets as an array.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.multiple {
		if a.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.values)
	}
	if len(a.values) == 0 {
		return []byte(`""`), nil
	}
	return json.Marshal(a.values[0])
}

// UnmarshalJSON accepts either a string or an array of strings.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*a = Answer{}
			return nil
		}
		*a = SingleAnswer(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("answer must be a string or an array of strings")
	}
	*a = MultiAnswer(many...)
	return nil
}

// FlattenAnswers returns every selected string in answer order.
func FlattenAnswers(answers []Answer) []string {
	var out []string
	for _, a := range answers {
		out = append(out, a.values...)
	}
	return out
}
