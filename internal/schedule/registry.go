// Package schedule holds an experience's question and branch triggers and
// decides which of them is due at a point on the main timeline.
package schedule

import (
	"cmp"
	"slices"

	"github.com/stwalsh4118/branchreel/internal/models"
)

// DefaultWindow is the tolerance in seconds after a trigger time during
// which the trigger is still due.
const DefaultWindow = 0.5

// Registry is an immutable, validated schedule. It is safe to share between
// sessions; per-session fired state lives in FiredSet values.
type Registry struct {
	experience models.Experience
	questions  []models.Question
	branches   []models.BranchDefinition
	window     float64
}

// NewRegistry validates exp and orders its triggers by time then id.
// Declarative branch conditions are compiled; a branch that already carries
// a Condition func keeps it.
func NewRegistry(exp models.Experience, window float64) (*Registry, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	if err := Validate(&exp); err != nil {
		return nil, err
	}

	questions := slices.Clone(exp.Questions)
	slices.SortStableFunc(questions, func(a, b models.Question) int {
		return cmp.Or(cmp.Compare(a.TriggerTime, b.TriggerTime), cmp.Compare(a.ID, b.ID))
	})

	answerIndex := make(map[int]int, len(questions))
	for i, q := range questions {
		answerIndex[q.ID] = i
	}

	branches := slices.Clone(exp.Branches)
	slices.SortStableFunc(branches, func(a, b models.BranchDefinition) int {
		return cmp.Or(cmp.Compare(a.TriggerTime, b.TriggerTime), cmp.Compare(a.ID, b.ID))
	})
	for i := range branches {
		branches[i].Options = slices.Clone(branches[i].Options)
		if branches[i].Condition == nil && branches[i].ConditionSpec != nil {
			branches[i].Condition = compileCondition(branches[i].ConditionSpec, answerIndex)
		}
	}

	exp.Questions = questions
	exp.Branches = branches

	return &Registry{
		experience: exp,
		questions:  questions,
		branches:   branches,
		window:     window,
	}, nil
}

// Experience returns the validated experience the registry was built from.
func (r *Registry) Experience() models.Experience {
	return r.experience
}

// MainSource returns the experience's main video.
func (r *Registry) MainSource() string {
	return r.experience.MainSource
}

// Window returns the trigger tolerance in seconds.
func (r *Registry) Window() float64 {
	return r.window
}

// Questions returns the questions in trigger order.
func (r *Registry) Questions() []models.Question {
	return r.questions
}

// Branches returns the branches in trigger order.
func (r *Registry) Branches() []models.BranchDefinition {
	return r.branches
}

// QuestionCount is the number of answers needed before branches are eligible.
func (r *Registry) QuestionCount() int {
	return len(r.questions)
}

// Question looks up a question by id.
func (r *Registry) Question(id int) (*models.Question, bool) {
	for i := range r.questions {
		if r.questions[i].ID == id {
			return &r.questions[i], true
		}
	}
	return nil, false
}

// Branch looks up a branch by id.
func (r *Registry) Branch(id int) (*models.BranchDefinition, bool) {
	for i := range r.branches {
		if r.branches[i].ID == id {
			return &r.branches[i], true
		}
	}
	return nil, false
}

// BranchIndex returns the position of a branch in trigger order, or -1.
func (r *Registry) BranchIndex(id int) int {
	return slices.IndexFunc(r.branches, func(b models.BranchDefinition) bool { return b.ID == id })
}

// InWindow reports whether t falls within [at, at+window).
func (r *Registry) InWindow(t, at float64) bool {
	return t >= at && t < at+r.window
}

// FindDueQuestion returns the first unfired question whose window contains t.
func (r *Registry) FindDueQuestion(t float64, fired FiredSet) (*models.Question, bool) {
	for i := range r.questions {
		q := &r.questions[i]
		if fired.Has(q.ID) {
			continue
		}
		if r.InWindow(t, q.TriggerTime) {
			return q, true
		}
	}
	return nil, false
}

// FindDueBranch returns the first unfired, eligible branch whose window
// contains t. No branch is due until every question has been answered.
func (r *Registry) FindDueBranch(t float64, fired FiredSet, answers []models.Answer) (*models.BranchDefinition, bool) {
	if len(answers) < len(r.questions) {
		return nil, false
	}
	for i := range r.branches {
		b := &r.branches[i]
		if fired.Has(b.ID) {
			continue
		}
		if r.InWindow(t, b.TriggerTime) && b.Eligible(answers) {
			return b, true
		}
	}
	return nil, false
}

// NextBranch returns the first unfired branch eligible for answers, whatever
// its trigger time. Used to warm option resolution ahead of time.
func (r *Registry) NextBranch(fired FiredSet, answers []models.Answer) (*models.BranchDefinition, bool) {
	for i := range r.branches {
		b := &r.branches[i]
		if !fired.Has(b.ID) && b.Eligible(answers) {
			return b, true
		}
	}
	return nil, false
}
