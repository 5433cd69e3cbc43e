package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/util"
)

// generateBaseBackoff is the delay before the second attempt; it doubles per attempt
const generateBaseBackoff = 2 * time.Second

// generateSleepFunc is the sleep function used between retries (injectable for tests)
var generateSleepFunc = util.SleepContext

// Waiter blocks until the named backend may be called again
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Generation is the raw outcome of one persona generation
type Generation struct {
	Text       string
	Model      string
	Provider   string
	TokensUsed int
	Attempts   int // Backend calls made, including failed ones
}

// Generator turns an evidence set into persona text through a Provider
type Generator struct {
	provider Provider
	config   Config
	limiter  Waiter
}

// NewGenerator creates a generator; limiter may be nil
func NewGenerator(provider Provider, config Config, limiter Waiter) *Generator {
	return &Generator{
		provider: provider,
		config:   config,
		limiter:  limiter,
	}
}

// ProviderName returns the name of the backend, or "" if none is configured
func (g *Generator) ProviderName() string {
	if g.provider == nil {
		return ""
	}
	return g.provider.Name()
}

// Generate synthesizes the persona prompt for set and returns the backend's text.
// Every failure is reported as a generation error.
func (g *Generator) Generate(ctx context.Context, set model.EvidenceSet) (*Generation, error) {
	return g.complete(ctx, BuildPersonaPrompt(set))
}

// Regenerate asks for a new persona after a citation check failed
func (g *Generator) Regenerate(ctx context.Context, set model.EvidenceSet, violations []string) (*Generation, error) {
	return g.complete(ctx, BuildPersonaPrompt(set)+correctionPrompt(violations))
}

func (g *Generator) complete(ctx context.Context, prompt string) (*Generation, error) {
	if g.provider == nil {
		return nil, model.NewError(model.KindGeneration, "", errors.New("no LLM provider configured"))
	}

	maxAttempts := g.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	maxTokens := g.config.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := g.config.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	req := CompletionRequest{
		System:      SystemPrompt,
		Prompt:      prompt,
		Model:       g.config.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := generateSleepFunc(ctx, generateBaseBackoff<<(attempt-2)); err != nil {
				return nil, model.NewError(model.KindGeneration, "", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, model.NewError(model.KindGeneration, "", err)
		}

		if g.limiter != nil {
			if err := g.limiter.Wait(ctx, g.provider.Name()); err != nil {
				return nil, model.NewError(model.KindGeneration, "", fmt.Errorf("rate limiter: %w", err))
			}
		}

		resp, err := g.provider.Complete(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp == nil || strings.TrimSpace(resp.Text) == "" {
			lastErr = errors.New("empty response")
			continue
		}

		return &Generation{
			Text:       strings.TrimSpace(resp.Text),
			Model:      resp.Model,
			Provider:   g.provider.Name(),
			TokensUsed: resp.TokensUsed,
			Attempts:   attempt,
		}, nil
	}

	return nil, model.NewError(model.KindGeneration, "",
		fmt.Errorf("%s: %d attempt(s): %w", g.provider.Name(), maxAttempts, lastErr))
}
