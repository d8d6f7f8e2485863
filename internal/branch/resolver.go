// Package branch resolves the options a viewer is offered at a branch point,
// optionally narrowed by an external filtering collaborator.
package branch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/models"
)

// ErrMalformedResponse is reported when a filter reply cannot be mapped back
// onto the declared options.
var ErrMalformedResponse = errors.New("malformed filter response")

// Filter narrows or rewords branch options given the viewer's choices so far.
type Filter interface {
	FilterOptions(ctx context.Context, req models.FilterRequest) (*models.FilterResponse, error)
}

// Resolution is the option set to show for one branch.
type Resolution struct {
	BranchID int                   `json:"branch_id"`
	Options  []models.BranchOption `json:"options"`
	// Filtered is false when the declared options are shown unmodified.
	Filtered bool `json:"filtered"`
}

// Resolver produces Resolutions. It holds no per-session state and is safe
// for concurrent use.
type Resolver struct {
	filter     Filter
	maxOptions int
	timeout    time.Duration
}

// NewResolver creates a resolver. A nil filter always yields declared options.
func NewResolver(filter Filter, maxOptions int, timeout time.Duration) *Resolver {
	return &Resolver{
		filter:     filter,
		maxOptions: maxOptions,
		timeout:    timeout,
	}
}

// Declared returns the branch's options exactly as configured.
func Declared(b *models.BranchDefinition) Resolution {
	return Resolution{
		BranchID: b.ID,
		Options:  slices.Clone(b.Options),
	}
}

// Resolve returns the options for b. The first declared option is always
// kept verbatim; the rest may be narrowed by the filter. Any filter failure
// falls back to the declared options, so Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, b *models.BranchDefinition, selectedSoFar []string) Resolution {
	if r.filter == nil || len(b.Options) < 2 {
		return Declared(b)
	}

	rest := b.Options[1:]
	req := models.FilterRequest{
		SelectedOptionsSoFar: slices.Clone(selectedSoFar),
		AvailableOptions:     make([]models.FilterOption, 0, len(rest)),
		MaxOptions:           r.maxOptions,
	}
	for _, o := range rest {
		req.AvailableOptions = append(req.AvailableOptions, models.FilterOption{
			ID:   strconv.Itoa(o.ID),
			Text: o.Text,
		})
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := r.filter.FilterOptions(ctx, req)
	if err == nil {
		var options []models.BranchOption
		options, err = mapResponse(resp, rest, r.maxOptions)
		if err == nil {
			return Resolution{
				BranchID: b.ID,
				Options:  append([]models.BranchOption{b.Options[0]}, options...),
				Filtered: true,
			}
		}
	}

	logger.Log.Warn().
		Err(err).
		Int("branch_id", b.ID).
		Msg("Option filtering failed, using declared options")
	return Declared(b)
}

// mapResponse maps returned ids back to full option records and substitutes
// the returned display text.
func mapResponse(resp *models.FilterResponse, available []models.BranchOption, maxOptions int) ([]models.BranchOption, error) {
	if resp == nil || len(resp.Options) == 0 {
		return nil, fmt.Errorf("%w: no options", ErrMalformedResponse)
	}

	byID := make(map[string]models.BranchOption, len(available))
	for _, o := range available {
		byID[strconv.Itoa(o.ID)] = o
	}

	seen := make(map[string]bool, len(resp.Options))
	out := make([]models.BranchOption, 0, len(resp.Options))
	for _, fo := range resp.Options {
		id := strings.TrimSpace(fo.ID)
		opt, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown option id %q", ErrMalformedResponse, fo.ID)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate option id %q", ErrMalformedResponse, fo.ID)
		}
		seen[id] = true
		if text := strings.TrimSpace(fo.Text); text != "" {
			opt.Text = text
		}
		out = append(out, opt)
	}

	if maxOptions > 0 && len(out) > maxOptions {
		out = out[:maxOptions]
	}
	return out, nil
}
