package pipeline

import (
	"fmt"

	"github.com/ppiankov/persona/internal/cache"
	"github.com/ppiankov/persona/internal/llm"
	"github.com/ppiankov/persona/internal/logging"
	"github.com/ppiankov/persona/internal/metrics"
	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/reddit"
	"github.com/ppiankov/persona/internal/worker"
)

// BuildOptions controls which optional parts FromConfig wires in
type BuildOptions struct {
	Persist bool // Write documents with a Store built from cfg.Output
	Metrics *metrics.Metrics
	Logger  *logging.Logger
}

// FromConfig wires the production collaborators: response cache, shared rate
// limiter, Reddit client, LLM provider and generator.
func FromConfig(cfg *model.Config, opts BuildOptions) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	responseCache, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	limiter.SetRate(provider.Name(), cfg.RateLimiting.LLMPerSecond, cfg.RateLimiting.LLMBurst)

	client := reddit.NewClient(reddit.Options{
		Config:   cfg.Reddit,
		HTTP:     cfg.HTTP,
		Cache:    responseCache,
		CacheTTL: cfg.Cache.TTL,
		Limiter:  limiter,
		Logger:   logger.With("component", "reddit"),
	})
	logger.Debug("pipeline configured",
		"reddit_mode", client.Mode(),
		"provider", provider.Name(),
		"model", cfg.LLM.Model,
		"cache", cfg.Cache.Backend,
		"citation_policy", cfg.Citations.Policy,
	)

	deps := Deps{
		Retriever: client,
		Generator: llm.NewGenerator(provider, llm.ConfigFromModel(cfg.LLM, cfg.HTTP), limiter),
		Metrics:   opts.Metrics,
		Logger:    logger,
	}
	if opts.Persist {
		deps.Store = NewStore(cfg.Output)
	}
	return NewPipeline(cfg, deps), nil
}
