package branch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/branchreel/internal/models"
)

type fakeFilter struct {
	resp *models.FilterResponse
	err  error
	got  models.FilterRequest
}

func (f *fakeFilter) FilterOptions(_ context.Context, req models.FilterRequest) (*models.FilterResponse, error) {
	f.got = req
	return f.resp, f.err
}

func vibeBranch() *models.BranchDefinition {
	return &models.BranchDefinition{
		ID:          2,
		TriggerTime: 50,
		Title:       "Pick your vibe...",
		Options: []models.BranchOption{
			{ID: 1, Text: "Keep going", Tags: []string{models.DirectorsChoiceTag}},
			{ID: 3, Text: "Am I Dreaming", VideoSource: "dream.mp4", ResumeOffset: models.At(65)},
			{ID: 4, Text: "Sunflower", VideoSource: "sunflower.mp4", ResumeOffset: models.At(65)},
			{ID: 5, Text: "What's Up Danger", VideoSource: "danger.mp4", SwitchOffset: models.At(55), ResumeOffset: models.At(65)},
		},
	}
}

func TestResolver_MapsFilteredOptions(t *testing.T) {
	f := &fakeFilter{resp: &models.FilterResponse{Options: []models.FilterOption{
		{ID: "5", Text: "Danger, but chill"},
		{ID: "3", Text: ""},
	}}}
	r := NewResolver(f, 3, time.Second)

	res := r.Resolve(context.Background(), vibeBranch(), []string{"Comedy", "Seek help"})

	assert.True(t, res.Filtered)
	require.Len(t, res.Options, 3)
	assert.Equal(t, "Keep going", res.Options[0].Text, "first option is kept verbatim")
	assert.Equal(t, 5, res.Options[1].ID)
	assert.Equal(t, "Danger, but chill", res.Options[1].Text)
	assert.Equal(t, "danger.mp4", res.Options[1].VideoSource)
	assert.Equal(t, models.At(55), res.Options[1].SwitchOffset)
	assert.Equal(t, "Am I Dreaming", res.Options[2].Text, "blank text keeps the declared text")

	assert.Equal(t, []string{"Comedy", "Seek help"}, f.got.SelectedOptionsSoFar)
	assert.Equal(t, 3, f.got.MaxOptions)
	require.Len(t, f.got.AvailableOptions, 3)
	assert.Equal(t, models.FilterOption{ID: "3", Text: "Am I Dreaming"}, f.got.AvailableOptions[0])
}

func TestResolver_TruncatesToMaxOptions(t *testing.T) {
	f := &fakeFilter{resp: &models.FilterResponse{Options: []models.FilterOption{
		{ID: "3", Text: "a"}, {ID: "4", Text: "b"}, {ID: "5", Text: "c"},
	}}}
	res := NewResolver(f, 2, 0).Resolve(context.Background(), vibeBranch(), nil)

	require.Len(t, res.Options, 3)
	assert.Equal(t, 4, res.Options[2].ID)
}

func TestResolver_FallsBack(t *testing.T) {
	tests := []struct {
		name   string
		filter *fakeFilter
	}{
		{name: "transport error", filter: &fakeFilter{err: errors.New("connection refused")}},
		{name: "nil response", filter: &fakeFilter{}},
		{name: "empty options", filter: &fakeFilter{resp: &models.FilterResponse{}}},
		{name: "unknown id", filter: &fakeFilter{resp: &models.FilterResponse{Options: []models.FilterOption{{ID: "99", Text: "x"}}}}},
		{name: "first option id is not filterable", filter: &fakeFilter{resp: &models.FilterResponse{Options: []models.FilterOption{{ID: "1", Text: "x"}}}}},
		{name: "duplicate id", filter: &fakeFilter{resp: &models.FilterResponse{Options: []models.FilterOption{{ID: "3"}, {ID: "3"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := vibeBranch()
			res := NewResolver(tt.filter, 3, time.Second).Resolve(context.Background(), b, nil)
			assert.False(t, res.Filtered)
			assert.Equal(t, b.Options, res.Options)
		})
	}
}

func TestResolver_SkipsFilter(t *testing.T) {
	f := &fakeFilter{err: errors.New("must not be called")}
	single := &models.BranchDefinition{ID: 1, Options: []models.BranchOption{{ID: 1, Text: "only"}}}

	res := NewResolver(f, 3, 0).Resolve(context.Background(), single, nil)
	assert.Len(t, res.Options, 1)
	assert.Nil(t, f.got.AvailableOptions)

	res = NewResolver(nil, 3, 0).Resolve(context.Background(), vibeBranch(), nil)
	assert.False(t, res.Filtered)
	assert.Len(t, res.Options, 4)
}

func TestMapResponse_Malformed(t *testing.T) {
	_, err := mapResponse(nil, vibeBranch().Options[1:], 3)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
