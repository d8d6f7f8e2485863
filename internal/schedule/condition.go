package schedule

import (
	"slices"

	"github.com/stwalsh4118/branchreel/internal/models"
)

// compileCondition turns a declarative condition into a predicate over the
// answer sequence. Answers are stored in question firing order, so the
// question's position in the registry is its index in the sequence.
func compileCondition(spec *models.ConditionSpec, answerIndex map[int]int) models.Condition {
	idx := answerIndex[spec.QuestionID]
	anyOf := slices.Clone(spec.AnyOf)
	return func(answers []models.Answer) bool {
		if idx >= len(answers) {
			return false
		}
		return slices.ContainsFunc(anyOf, answers[idx].Contains)
	}
}
