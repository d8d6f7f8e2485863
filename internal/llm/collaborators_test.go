package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/branchreel/internal/collab"
	"github.com/stwalsh4118/branchreel/internal/config"
	"github.com/stwalsh4118/branchreel/internal/models"
)

type scriptedGenerator struct {
	reply  string
	err    error
	system string
	user   string
}

func (g *scriptedGenerator) GenerateWithSystem(_ context.Context, system, user string) (string, error) {
	g.system, g.user = system, user
	return g.reply, g.err
}

func newBreaker() *collab.Breaker {
	return collab.NewBreaker("llm", 3, time.Minute)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{name: "bare", text: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", text: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose", text: `Sure! {"a":{"b":2}} Hope that helps.`, want: `{"a":{"b":2}}`},
		{name: "none", text: "no json here", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.text)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_FilterOptions(t *testing.T) {
	gen := &scriptedGenerator{reply: "```json\n{\"options\":[{\"id\":\"4\",\"text\":\"Sunny beats\"}]}\n```"}
	f := NewFilter(gen, newBreaker())

	resp, err := f.FilterOptions(context.Background(), models.FilterRequest{
		SelectedOptionsSoFar: []string{"Comedy"},
		AvailableOptions:     []models.FilterOption{{ID: "4", Text: "Sunflower"}},
		MaxOptions:           2,
	})
	require.NoError(t, err)
	assert.Equal(t, []models.FilterOption{{ID: "4", Text: "Sunny beats"}}, resp.Options)
	assert.Contains(t, gen.user, `"selectedOptionsSoFar":["Comedy"]`)
	assert.Contains(t, gen.system, "maxOptions")
}

func TestFilter_ModelError(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("model offline")}
	_, err := NewFilter(gen, newBreaker()).FilterOptions(context.Background(), models.FilterRequest{})
	assert.Error(t, err)
}

func TestSummarizer_Summarize(t *testing.T) {
	gen := &scriptedGenerator{reply: `{"userType":"Calm Strategist","description":"Plans ahead.","traits":["Organised"]}`}
	s := NewSummarizer(gen, newBreaker())

	profile, err := s.Summarize(context.Background(), models.SummaryRequest{SelectedOptions: []string{"Comedy", "Seek help"}})
	require.NoError(t, err)
	assert.Equal(t, "Calm Strategist", profile.UserType)
	assert.True(t, strings.Contains(gen.user, "- Seek help"))
}

func TestSummarizer_GarbageFallsBackThroughProfile(t *testing.T) {
	s := NewSummarizer(&scriptedGenerator{reply: "I cannot do that"}, newBreaker())
	profile := collab.Profile(context.Background(), s, models.Handoff{})
	assert.Equal(t, models.FallbackProfile(), profile)
}

func TestNewModel_Validation(t *testing.T) {
	_, err := NewModel(config.ServicesConfig{Provider: config.ProviderOpenAI})
	assert.Error(t, err, "openai needs a key")

	_, err = NewModel(config.ServicesConfig{Provider: config.ProviderAnthropic})
	assert.Error(t, err, "anthropic needs a key")

	_, err = NewModel(config.ServicesConfig{Provider: config.ProviderHTTP})
	assert.Error(t, err, "http is not an llm provider")
}
