package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stwalsh4118/branchreel/internal/collab"
	"github.com/stwalsh4118/branchreel/internal/models"
)

// ErrNoJSON is returned when a completion contains no JSON object
var ErrNoJSON = errors.New("no JSON object in completion")

const filterSystemPrompt = `You tailor choices in an interactive film to the viewer.
You receive the viewer's previous selections and a list of available options, each with an id.
Pick at most maxOptions options that best fit the viewer and optionally reword their text to speak to them.
Only use ids from availableOptions. Reply with JSON only, in the form:
{"options":[{"id":"<id>","text":"<display text>"}]}`

const summarySystemPrompt = `You analyse a viewer's choices in an interactive film and describe their personality.
Reply with JSON only, in the form:
{"userType":"<two or three word type>","description":"<one or two sentences>","traits":["<trait>","<trait>"]}`

// Filter implements branch.Filter with a language model.
type Filter struct {
	gen     Generator
	breaker *collab.Breaker
}

// NewFilter creates a model-backed option filter.
func NewFilter(gen Generator, breaker *collab.Breaker) *Filter {
	return &Filter{gen: gen, breaker: breaker}
}

// FilterOptions implements branch.Filter.
func (f *Filter) FilterOptions(ctx context.Context, req models.FilterRequest) (*models.FilterResponse, error) {
	prompt, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode filter request: %w", err)
	}

	var resp models.FilterResponse
	err = f.breaker.Do(ctx, func(ctx context.Context) error {
		return generateJSON(ctx, f.gen, filterSystemPrompt, string(prompt), &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Summarizer implements collab.Summarizer with a language model.
type Summarizer struct {
	gen     Generator
	breaker *collab.Breaker
}

// NewSummarizer creates a model-backed personality summarizer.
func NewSummarizer(gen Generator, breaker *collab.Breaker) *Summarizer {
	return &Summarizer{gen: gen, breaker: breaker}
}

// Summarize implements collab.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, req models.SummaryRequest) (*models.PersonalityProfile, error) {
	userPrompt := fmt.Sprintf("Viewer selections, in order:\n- %s", strings.Join(req.SelectedOptions, "\n- "))

	var profile models.PersonalityProfile
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		return generateJSON(ctx, s.gen, summarySystemPrompt, userPrompt, &profile)
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func generateJSON(ctx context.Context, gen Generator, system, user string, out any) error {
	text, err := gen.GenerateWithSystem(ctx, system, user)
	if err != nil {
		return err
	}
	obj, err := extractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return fmt.Errorf("decode completion: %w", err)
	}
	return nil
}

// extractJSON returns the outermost JSON object in text, tolerating code
// fences and prose around it.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}
