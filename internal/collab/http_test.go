package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/branchreel/internal/models"
)

func TestHTTPFilter_FilterOptions(t *testing.T) {
	var got models.FilterRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"options":[{"id":"3","text":"Dreamy"}]}`))
	}))
	defer srv.Close()

	f := NewHTTPFilter(srv.URL, time.Second, 3, time.Minute)
	resp, err := f.FilterOptions(context.Background(), models.FilterRequest{
		SelectedOptionsSoFar: []string{"Comedy"},
		AvailableOptions:     []models.FilterOption{{ID: "3", Text: "Am I Dreaming"}},
		MaxOptions:           3,
	})
	require.NoError(t, err)
	assert.Equal(t, []models.FilterOption{{ID: "3", Text: "Dreamy"}}, resp.Options)
	assert.Equal(t, []string{"Comedy"}, got.SelectedOptionsSoFar)
	assert.Equal(t, 3, got.MaxOptions)
}

func TestHTTPFilter_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewHTTPFilter(srv.URL, time.Second, 2, time.Minute)
	ctx := context.Background()

	_, err := f.FilterOptions(ctx, models.FilterRequest{})
	assert.ErrorIs(t, err, ErrBadStatus)
	_, err = f.FilterOptions(ctx, models.FilterRequest{})
	assert.ErrorIs(t, err, ErrBadStatus)

	_, err = f.FilterOptions(ctx, models.FilterRequest{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, StateOpen, f.Breaker().State())
}

func TestHTTPFilter_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"options": "nope"`))
	}))
	defer srv.Close()

	_, err := NewHTTPFilter(srv.URL, time.Second, 3, time.Minute).FilterOptions(context.Background(), models.FilterRequest{})
	assert.Error(t, err)
}

func TestHTTPFilter_NoURL(t *testing.T) {
	_, err := NewHTTPFilter("", time.Second, 3, time.Minute).FilterOptions(context.Background(), models.FilterRequest{})
	assert.Error(t, err)
}

func TestHTTPSummarizer_Summarize(t *testing.T) {
	var got models.SummaryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"userType":"Bold Adventurer","description":"Thrill seeker.","traits":["Brave"]}`))
	}))
	defer srv.Close()

	s := NewHTTPSummarizer(srv.URL, time.Second, 3, time.Minute)
	handoff := models.Handoff{Answers: []models.Answer{models.MultiAnswer("Comedy", "Thriller"), models.SingleAnswer("Seek help")}}

	profile := Profile(context.Background(), s, handoff)
	assert.Equal(t, "Bold Adventurer", profile.UserType)
	assert.Equal(t, []string{"Brave"}, profile.Traits)
	assert.Equal(t, []string{"Comedy", "Thriller", "Seek help"}, got.SelectedOptions)
}

type stubSummarizer struct {
	profile *models.PersonalityProfile
	err     error
}

func (s stubSummarizer) Summarize(context.Context, models.SummaryRequest) (*models.PersonalityProfile, error) {
	return s.profile, s.err
}

func TestProfile_Fallback(t *testing.T) {
	tests := []struct {
		name string
		s    Summarizer
	}{
		{name: "no summarizer", s: nil},
		{name: "error", s: stubSummarizer{err: errors.New("down")}},
		{name: "empty profile", s: stubSummarizer{profile: &models.PersonalityProfile{}}},
		{name: "missing description", s: stubSummarizer{profile: &models.PersonalityProfile{UserType: "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, models.FallbackProfile(), Profile(context.Background(), tt.s, models.Handoff{}))
		})
	}
}

func TestSelectedOptions_NeverNil(t *testing.T) {
	assert.Equal(t, []string{}, SelectedOptions(models.Handoff{}))
}
