package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stwalsh4118/branchreel/internal/models"
)

// ErrInvalidSchedule is wrapped by every ValidationError.
var ErrInvalidSchedule = errors.New("invalid schedule")

// ValidationError lists every misconfiguration found in an experience.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidSchedule, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidSchedule
}

// IsValidationError reports whether err is a schedule validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidSchedule)
}

type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Validate checks an experience before any session is started on it.
func Validate(exp *models.Experience) error {
	var p problems

	if strings.TrimSpace(exp.MainSource) == "" {
		p.addf("main source is required")
	}
	mainDuration := exp.Durations[exp.MainSource]

	questions := make(map[int]*models.Question, len(exp.Questions))
	for i := range exp.Questions {
		q := &exp.Questions[i]
		if _, dup := questions[q.ID]; dup {
			p.addf("question %d: duplicate id", q.ID)
		}
		questions[q.ID] = q
		if q.TriggerTime < 0 {
			p.addf("question %d: negative trigger time", q.ID)
		}
		if mainDuration > 0 && q.TriggerTime >= mainDuration {
			p.addf("question %d: trigger time %.2fs is past the end of the main source", q.ID, q.TriggerTime)
		}
		if strings.TrimSpace(q.Prompt) == "" {
			p.addf("question %d: prompt is required", q.ID)
		}
		if len(q.Options) == 0 {
			p.addf("question %d: has no options", q.ID)
		}
	}

	seenBranches := make(map[int]bool, len(exp.Branches))
	for i := range exp.Branches {
		b := &exp.Branches[i]
		if seenBranches[b.ID] {
			p.addf("branch %d: duplicate id", b.ID)
		}
		seenBranches[b.ID] = true
		if b.TriggerTime < 0 {
			p.addf("branch %d: negative trigger time", b.ID)
		}
		if mainDuration > 0 && b.TriggerTime >= mainDuration {
			p.addf("branch %d: trigger time %.2fs is past the end of the main source", b.ID, b.TriggerTime)
		}
		if len(b.Options) == 0 {
			p.addf("branch %d: has no options", b.ID)
		}
		validateCondition(&p, b, questions)

		seenOptions := make(map[int]bool, len(b.Options))
		for j := range b.Options {
			o := &b.Options[j]
			if seenOptions[o.ID] {
				p.addf("branch %d option %d: duplicate id", b.ID, o.ID)
			}
			seenOptions[o.ID] = true
			validateOption(&p, b, o, mainDuration)
		}
	}

	if len(p) > 0 {
		return &ValidationError{Problems: p}
	}
	return nil
}

func validateCondition(p *problems, b *models.BranchDefinition, questions map[int]*models.Question) {
	spec := b.ConditionSpec
	if spec == nil {
		return
	}
	q, ok := questions[spec.QuestionID]
	if !ok {
		p.addf("branch %d: condition references unknown question %d", b.ID, spec.QuestionID)
		return
	}
	if len(spec.AnyOf) == 0 {
		p.addf("branch %d: condition has no values", b.ID)
		return
	}
	for _, v := range spec.AnyOf {
		if !q.HasOption(v) {
			p.addf("branch %d: condition value %q is not an option of question %d", b.ID, v, q.ID)
		}
	}
}

func validateOption(p *problems, b *models.BranchDefinition, o *models.BranchOption, mainDuration float64) {
	if strings.TrimSpace(o.Text) == "" {
		p.addf("branch %d option %d: text is required", b.ID, o.ID)
	}
	if o.StartOffset < 0 {
		p.addf("branch %d option %d: negative start offset", b.ID, o.ID)
	}
	if o.ResumeOffset.Set && o.ResumeOffset.Value < 0 {
		p.addf("branch %d option %d: negative resume offset", b.ID, o.ID)
	}
	if o.ResumeOffset.Set && mainDuration > 0 && o.ResumeOffset.Value > mainDuration {
		p.addf("branch %d option %d: resume offset is past the end of the main source", b.ID, o.ID)
	}

	if o.IsNoOp() {
		if o.SwitchOffset.Set {
			p.addf("branch %d option %d: a %q option cannot defer a switch", b.ID, o.ID, models.DirectorsChoiceTag)
		}
		return
	}

	if strings.TrimSpace(o.VideoSource) == "" {
		p.addf("branch %d option %d: video source is required", b.ID, o.ID)
	}
	if !o.ResumeOffset.Set {
		p.addf("branch %d option %d: resume offset is required", b.ID, o.ID)
	}
	if o.SwitchOffset.Set && o.SwitchOffset.Value < b.TriggerTime {
		p.addf("branch %d option %d: switch offset %.2fs is before the branch trigger time", b.ID, o.ID, o.SwitchOffset.Value)
	}
}
