package schedule

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/branchreel/internal/models"
)

func testExperience() models.Experience {
	return models.Experience{
		Name:       "test",
		MainSource: "main.mp4",
		Questions: []models.Question{
			{ID: 2, TriggerTime: 10, Prompt: "Q2", Options: []string{"Seek help", "Go with the flow"}},
			{ID: 1, TriggerTime: 0, Prompt: "Q1", Options: []string{"Comedy", "Romance", "Thriller"}, AllowMultiple: true},
		},
		Branches: []models.BranchDefinition{
			{
				ID: 2, TriggerTime: 22, Title: "B2",
				ConditionSpec: &models.ConditionSpec{QuestionID: 1, AnyOf: []string{"Romance"}},
				Options: []models.BranchOption{
					{ID: 1, Text: "continue", Tags: []string{models.DirectorsChoiceTag}},
				},
			},
			{
				ID: 1, TriggerTime: 22, Title: "B1",
				Options: []models.BranchOption{
					{ID: 1, Text: "continue", Tags: []string{models.DirectorsChoiceTag}},
					{ID: 2, Text: "divert", VideoSource: "b.mp4", SwitchOffset: models.At(29), ResumeOffset: models.At(42)},
				},
			},
		},
	}
}

func TestNewRegistry_OrdersTriggers(t *testing.T) {
	r, err := NewRegistry(testExperience(), 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultWindow, r.Window())
	assert.Equal(t, 1, r.Questions()[0].ID)
	assert.Equal(t, 1, r.Branches()[0].ID, "equal trigger times break ties by id")
	assert.Equal(t, 1, r.BranchIndex(2))
	assert.Equal(t, -1, r.BranchIndex(9))
	assert.Equal(t, 2, r.QuestionCount())
	assert.Equal(t, "main.mp4", r.MainSource())
}

func TestRegistry_FindDueQuestion(t *testing.T) {
	r, err := NewRegistry(testExperience(), 0.5)
	require.NoError(t, err)

	tests := []struct {
		name   string
		t      float64
		fired  FiredSet
		wantID int
		wantOK bool
	}{
		{name: "at trigger", t: 10, fired: FiredSet{}, wantID: 2, wantOK: true},
		{name: "inside window", t: 10.49, fired: FiredSet{}, wantID: 2, wantOK: true},
		{name: "window end is exclusive", t: 10.5, fired: FiredSet{}},
		{name: "before trigger", t: 9.99, fired: FiredSet{}},
		{name: "already fired", t: 10.1, fired: FiredSet{2: {}}},
		{name: "first question at zero", t: 0, fired: FiredSet{}, wantID: 1, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok := r.FindDueQuestion(tt.t, tt.fired)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, q.ID)
			}
		})
	}
}

func TestRegistry_FindDueBranch(t *testing.T) {
	r, err := NewRegistry(testExperience(), 0.5)
	require.NoError(t, err)

	answered := []models.Answer{models.MultiAnswer("Comedy", "Thriller"), models.SingleAnswer("Seek help")}

	t.Run("requires all questions answered", func(t *testing.T) {
		_, ok := r.FindDueBranch(22, FiredSet{}, answered[:1])
		assert.False(t, ok)
	})

	t.Run("lowest id wins a tie", func(t *testing.T) {
		b, ok := r.FindDueBranch(22.2, FiredSet{}, answered)
		require.True(t, ok)
		assert.Equal(t, 1, b.ID)
	})

	t.Run("condition excludes branch", func(t *testing.T) {
		_, ok := r.FindDueBranch(22.2, FiredSet{1: {}}, answered)
		assert.False(t, ok, "branch 2 needs Romance")
	})

	t.Run("condition satisfied", func(t *testing.T) {
		romance := []models.Answer{models.MultiAnswer("Romance"), models.SingleAnswer("Seek help")}
		b, ok := r.FindDueBranch(22.2, FiredSet{1: {}}, romance)
		require.True(t, ok)
		assert.Equal(t, 2, b.ID)
	})

	t.Run("next branch ignores time", func(t *testing.T) {
		b, ok := r.NextBranch(FiredSet{}, answered)
		require.True(t, ok)
		assert.Equal(t, 1, b.ID)
		_, ok = r.NextBranch(FiredSet{1: {}}, answered)
		assert.False(t, ok)
	})
}

func TestRegistry_KeepsExplicitCondition(t *testing.T) {
	exp := testExperience()
	exp.Branches[1].Condition = func(answers []models.Answer) bool { return false }
	r, err := NewRegistry(exp, 0.5)
	require.NoError(t, err)

	answered := []models.Answer{models.MultiAnswer("Romance"), models.SingleAnswer("Seek help")}
	b, ok := r.FindDueBranch(22, FiredSet{}, answered)
	require.True(t, ok)
	assert.Equal(t, 2, b.ID, "branch 1 is vetoed by its own condition")
}

func TestFiredSet(t *testing.T) {
	f := FiredSet{}
	f.Add(3)
	assert.True(t, f.Has(3))
	f.Remove(3)
	assert.False(t, f.Has(3))
}

func TestValidate_CollectsProblems(t *testing.T) {
	exp := models.Experience{
		Questions: []models.Question{
			{ID: 1, Prompt: "Q", Options: []string{"a"}},
			{ID: 1, Prompt: "", Options: nil},
		},
		Branches: []models.BranchDefinition{
			{ID: 1, TriggerTime: 20},
			{
				ID: 2, TriggerTime: 20,
				ConditionSpec: &models.ConditionSpec{QuestionID: 1, AnyOf: []string{"z"}},
				Options: []models.BranchOption{
					{ID: 1, Text: "go", VideoSource: "b.mp4", SwitchOffset: models.At(10)},
					{ID: 1, Text: "stay", Tags: []string{models.DirectorsChoiceTag}, SwitchOffset: models.At(25)},
				},
			},
		},
	}

	err := Validate(&exp)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems, "main source is required")
	assert.Contains(t, verr.Problems, "question 1: duplicate id")
	assert.Contains(t, verr.Problems, "branch 1: has no options")
	assert.Contains(t, verr.Problems, "branch 2 option 1: resume offset is required")
	assert.Contains(t, verr.Problems, "branch 2 option 1: duplicate id")
	assert.Contains(t, verr.Problems, `branch 2: condition value "z" is not an option of question 1`)
	assert.Contains(t, verr.Problems, "branch 2 option 1: switch offset 10.00s is before the branch trigger time")
}

func TestValidate_DurationBounds(t *testing.T) {
	exp := testExperience()
	exp.Durations = map[string]float64{"main.mp4": 30}

	err := Validate(&exp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resume offset is past the end of the main source")

	exp.Durations["main.mp4"] = 60
	assert.NoError(t, Validate(&exp))
}

func TestLoadFile_Example(t *testing.T) {
	def, err := LoadFile(filepath.Join("..", "..", "experiences", "spider-verse.yaml"))
	require.NoError(t, err)

	exp := def.Experience()
	r, err := NewRegistry(exp, DefaultWindow)
	require.NoError(t, err)

	assert.Equal(t, "/videos/spiderman_1080.mp4", r.MainSource())
	assert.Equal(t, 120.0, exp.Durations["/videos/spiderman_1080.mp4"])

	b, ok := r.Branch(1)
	require.True(t, ok)
	assert.True(t, b.Options[0].IsNoOp())
	assert.Equal(t, models.At(22), b.Options[1].SwitchOffset)

	back := DefinitionOf(&exp)
	data, err := back.ToYAML()
	require.NoError(t, err)
	again, err := ParseYAML(data)
	require.NoError(t, err)
	assert.Equal(t, def.Branches, again.Branches)
}

func TestParseYAML_RejectsUnknownFields(t *testing.T) {
	_, err := ParseYAML([]byte("name: x\nmain_source: m.mp4\nsurprise: true\n"))
	assert.Error(t, err)
}
