package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/branchreel/internal/models"
	"github.com/stwalsh4118/branchreel/internal/schedule"
)

// memoryStore mimics the repository's replace-by-name semantics.
type memoryStore struct {
	mu     sync.Mutex
	byName map[string]models.Experience
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byName: make(map[string]models.Experience)}
}

func (s *memoryStore) Replace(_ context.Context, exp *models.Experience) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if existing, ok := s.byName[exp.Name]; ok && exp.ID == "" {
		exp.ID = existing.ID
	}
	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	s.byName[exp.Name] = *exp
	return nil
}

func (s *memoryStore) get(name string) (models.Experience, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.byName[name]
	return exp, ok
}

type fakeDurations struct {
	known     map[string]float64
	preloaded map[string]float64
}

func (f *fakeDurations) Duration(uri string) (float64, error) {
	if d, ok := f.known[uri]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("%s: unknown", uri)
}

func (f *fakeDurations) Preload(durations map[string]float64) {
	f.preloaded = durations
}

func testDefinition(name string) *schedule.Definition {
	return &schedule.Definition{
		Name:       name,
		MainSource: "/videos/main.mp4",
		Questions: []schedule.QuestionDef{
			{ID: 1, TriggerTime: 0, Prompt: "Pick one", Options: []string{"A", "B"}},
		},
		Branches: []schedule.BranchDef{
			{
				ID:          1,
				TriggerTime: 20,
				Title:       "Where to?",
				Options: []schedule.OptionDef{
					{ID: 1, Text: "Stay", Tags: []string{models.DirectorsChoiceTag}},
					{ID: 2, Text: "Go", VideoSource: "/videos/clip.mp4", ResumeOffset: models.At(40).Ptr()},
				},
			},
		},
	}
}

const testDefinitionYAML = `name: Watched
main_source: /videos/main.mp4
media:
  - {uri: /videos/main.mp4, duration: 60}
questions:
  - id: 1
    trigger_time: 0
    prompt: Pick one
    options: [A, B]
branches: []
`

func TestImporter_ImportMeasuresAndPreloads(t *testing.T) {
	store := newMemoryStore()
	durations := &fakeDurations{known: map[string]float64{"/videos/main.mp4": 120}}
	importer := NewImporter(store, durations)

	exp, err := importer.Import(context.Background(), testDefinition("Demo"))
	require.NoError(t, err)
	assert.NotEmpty(t, exp.ID)
	assert.Equal(t, 120.0, exp.Durations["/videos/main.mp4"])
	_, measured := exp.Durations["/videos/clip.mp4"]
	assert.False(t, measured, "unmeasurable sources are left out")
	assert.Equal(t, exp.Durations, durations.preloaded)

	stored, ok := store.get("Demo")
	require.True(t, ok)
	assert.Equal(t, exp.ID, stored.ID)
}

func TestImporter_ReplaceKeepsID(t *testing.T) {
	store := newMemoryStore()
	importer := NewImporter(store, nil)
	ctx := context.Background()

	first, err := importer.Import(ctx, testDefinition("Demo"))
	require.NoError(t, err)

	def := testDefinition("Demo")
	def.Branches = nil
	second, err := importer.Import(ctx, def)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	stored, _ := store.get("Demo")
	assert.Empty(t, stored.Branches)
}

func TestImporter_RejectsInvalidDefinition(t *testing.T) {
	store := newMemoryStore()
	importer := NewImporter(store, nil)

	def := testDefinition("Broken")
	def.Questions[0].Options = nil
	def.Media = []schedule.MediaHint{{URI: "/videos/main.mp4", Duration: 10}}

	_, err := importer.Import(context.Background(), def)
	require.Error(t, err)
	assert.True(t, schedule.IsValidationError(err))

	var verr *schedule.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 3, "empty options, trigger and resume past the end")

	_, ok := store.get("Broken")
	assert.False(t, ok)
}

func TestImporter_StoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("disk full")
	importer := NewImporter(store, nil)

	_, err := importer.Import(context.Background(), testDefinition("Demo"))
	assert.ErrorIs(t, err, store.err)
}

func TestImporter_ImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDefinitionYAML), 0o644))

	store := newMemoryStore()
	exp, err := NewImporter(store, nil).ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Watched", exp.Name)
	assert.Equal(t, 60.0, exp.Durations["/videos/main.mp4"])

	_, err = NewImporter(store, nil).ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
