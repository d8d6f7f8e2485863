package server

import (
	"fmt"

	"github.com/stwalsh4118/branchreel/internal/branch"
	"github.com/stwalsh4118/branchreel/internal/collab"
	"github.com/stwalsh4118/branchreel/internal/config"
	"github.com/stwalsh4118/branchreel/internal/llm"
	"github.com/stwalsh4118/branchreel/internal/logger"
)

// NewCollaborators builds the option filter and the summarizer for the
// configured provider. A nil result means the collaborator is disabled.
func NewCollaborators(cfg config.ServicesConfig) (branch.Filter, collab.Summarizer, error) {
	switch cfg.Provider {
	case config.ProviderHTTP, "":
		var filter branch.Filter
		var summarizer collab.Summarizer
		if cfg.FilterURL != "" {
			filter = collab.NewHTTPFilter(cfg.FilterURL, cfg.RequestTimeout, cfg.BreakerThreshold, cfg.BreakerResetTimeout)
		}
		if cfg.SummaryURL != "" {
			summarizer = collab.NewHTTPSummarizer(cfg.SummaryURL, cfg.RequestTimeout, cfg.BreakerThreshold, cfg.BreakerResetTimeout)
		}

		logger.Log.Info().
			Bool("filter", filter != nil).
			Bool("summary", summarizer != nil).
			Msg("Using HTTP collaborators")
		return filter, summarizer, nil

	case config.ProviderOllama, config.ProviderOpenAI, config.ProviderAnthropic:
		model, err := llm.NewModel(cfg)
		if err != nil {
			return nil, nil, err
		}

		logger.Log.Info().
			Str("provider", cfg.Provider).
			Str("model", model.Model()).
			Msg("Using language model collaborators")
		return llm.NewFilter(model, collab.NewBreaker("filter", cfg.BreakerThreshold, cfg.BreakerResetTimeout)),
			llm.NewSummarizer(model, collab.NewBreaker("summary", cfg.BreakerThreshold, cfg.BreakerResetTimeout)),
			nil

	default:
		return nil, nil, fmt.Errorf("unsupported services provider: %s", cfg.Provider)
	}
}
