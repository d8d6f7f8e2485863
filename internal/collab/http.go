package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stwalsh4118/branchreel/internal/models"
)

// maxResponseBytes bounds collaborator replies
const maxResponseBytes = 1 << 20

// ErrBadStatus is returned for non-2xx collaborator replies
var ErrBadStatus = errors.New("unexpected collaborator status")

// client posts JSON to one collaborator endpoint through a breaker
type client struct {
	url     string
	http    *http.Client
	breaker *Breaker
}

func newClient(name, url string, timeout time.Duration, threshold int, reset time.Duration) client {
	return client{
		url:     url,
		http:    &http.Client{Timeout: timeout},
		breaker: NewBreaker(name, threshold, reset),
	}
}

func (c *client) postJSON(ctx context.Context, body, out any) error {
	if c.url == "" {
		return fmt.Errorf("collaborator url is not configured")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	return c.breaker.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
			return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
		}

		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}

// HTTPFilter calls the option filtering endpoint
type HTTPFilter struct {
	client
}

// NewHTTPFilter creates a filtering client for url
func NewHTTPFilter(url string, timeout time.Duration, threshold int, reset time.Duration) *HTTPFilter {
	return &HTTPFilter{client: newClient("filter", url, timeout, threshold, reset)}
}

// FilterOptions implements branch.Filter
func (f *HTTPFilter) FilterOptions(ctx context.Context, req models.FilterRequest) (*models.FilterResponse, error) {
	var resp models.FilterResponse
	if err := f.postJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Breaker exposes the client's circuit breaker for health reporting
func (f *HTTPFilter) Breaker() *Breaker {
	return f.breaker
}

// HTTPSummarizer calls the personality analysis endpoint
type HTTPSummarizer struct {
	client
}

// NewHTTPSummarizer creates a summary client for url
func NewHTTPSummarizer(url string, timeout time.Duration, threshold int, reset time.Duration) *HTTPSummarizer {
	return &HTTPSummarizer{client: newClient("summary", url, timeout, threshold, reset)}
}

// Summarize implements Summarizer
func (s *HTTPSummarizer) Summarize(ctx context.Context, req models.SummaryRequest) (*models.PersonalityProfile, error) {
	var profile models.PersonalityProfile
	if err := s.postJSON(ctx, req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Breaker exposes the client's circuit breaker for health reporting
func (s *HTTPSummarizer) Breaker() *Breaker {
	return s.breaker
}
