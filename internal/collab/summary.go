package collab

import (
	"context"
	"errors"
	"strings"

	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/models"
)

// ErrIncompleteProfile is reported when a profile lacks a type or description
var ErrIncompleteProfile = errors.New("incomplete personality profile")

// Summarizer synthesises a personality profile from a viewer's choices
type Summarizer interface {
	Summarize(ctx context.Context, req models.SummaryRequest) (*models.PersonalityProfile, error)
}

// Profile asks s for a profile of handoff and substitutes the fallback
// profile on any failure, so the summary view is never empty.
func Profile(ctx context.Context, s Summarizer, handoff models.Handoff) models.PersonalityProfile {
	if s == nil {
		return models.FallbackProfile()
	}

	req := models.SummaryRequest{SelectedOptions: SelectedOptions(handoff)}
	profile, err := s.Summarize(ctx, req)
	if err == nil {
		err = checkProfile(profile)
	}
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Int("selected_options", len(req.SelectedOptions)).
			Msg("Personality summary failed, using fallback profile")
		return models.FallbackProfile()
	}
	return *profile
}

// SelectedOptions flattens the answer sequence in question order.
func SelectedOptions(handoff models.Handoff) []string {
	out := models.FlattenAnswers(handoff.Answers)
	if out == nil {
		out = []string{}
	}
	return out
}

func checkProfile(p *models.PersonalityProfile) error {
	if p == nil || strings.TrimSpace(p.UserType) == "" || strings.TrimSpace(p.Description) == "" {
		return ErrIncompleteProfile
	}
	if p.Traits == nil {
		p.Traits = []string{}
	}
	return nil
}
