package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/persona/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider replays scripted responses and records requests
type fakeProvider struct {
	mu        sync.Mutex
	responses []*CompletionResponse
	errs      []error
	requests  []CompletionRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return nil, errors.New("no scripted response")
}

type countingWaiter struct {
	keys []string
	err  error
}

func (w *countingWaiter) Wait(ctx context.Context, key string) error {
	w.keys = append(w.keys, key)
	return w.err
}

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := generateSleepFunc
	generateSleepFunc = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	t.Cleanup(func() { generateSleepFunc = orig })
	return &slept
}

func testEvidence() model.EvidenceSet {
	return model.EvidenceSet{
		Posts:    []model.EvidenceItem{{ID: "p1", SourceType: model.SourcePost, Community: "gaming", Title: "Skyrim", Body: "mods"}},
		Comments: []model.EvidenceItem{{ID: "c1", SourceType: model.SourceComment, Community: "cooking", Body: "sourdough"}},
	}
}

func TestGenerator_Generate_Success(t *testing.T) {
	noSleep(t)
	provider := &fakeProvider{responses: []*CompletionResponse{{Text: "  ## Interests\n- Gaming (Post ID: p1)\n", Model: "m", TokensUsed: 42}}}
	waiter := &countingWaiter{}

	gen := NewGenerator(provider, Config{MaxAttempts: 2}, waiter)
	out, err := gen.Generate(context.Background(), testEvidence())
	require.NoError(t, err)

	assert.Equal(t, "## Interests\n- Gaming (Post ID: p1)", out.Text)
	assert.Equal(t, "fake", out.Provider)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 42, out.TokensUsed)
	assert.Equal(t, []string{"fake"}, waiter.keys)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	assert.Equal(t, SystemPrompt, req.System)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	assert.InDelta(t, DefaultTemperature, req.Temperature, 0.001)
	assert.Contains(t, req.Prompt, "Post ID: p1")
	assert.Contains(t, req.Prompt, "Comment ID: c1")
}

func TestGenerator_Generate_RetriesThenSucceeds(t *testing.T) {
	slept := noSleep(t)
	provider := &fakeProvider{
		errs:      []error{errors.New("503 overloaded"), nil},
		responses: []*CompletionResponse{nil, {Text: "ok"}},
	}

	gen := NewGenerator(provider, Config{MaxAttempts: 3}, nil)
	out, err := gen.Generate(context.Background(), testEvidence())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []time.Duration{generateBaseBackoff}, *slept)
}

func TestGenerator_Generate_EmptyResponseIsGenerationError(t *testing.T) {
	slept := noSleep(t)
	provider := &fakeProvider{responses: []*CompletionResponse{{Text: " \n"}, {Text: ""}}}

	gen := NewGenerator(provider, Config{MaxAttempts: 2}, nil)
	_, err := gen.Generate(context.Background(), testEvidence())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrGeneration)
	assert.Equal(t, model.KindGeneration, model.KindOf(err))
	assert.Len(t, provider.requests, 2)
	assert.Len(t, *slept, 1)
}

func TestGenerator_Generate_SingleAttemptByDefault(t *testing.T) {
	noSleep(t)
	provider := &fakeProvider{errs: []error{errors.New("rate limited")}}

	gen := NewGenerator(provider, Config{}, nil)
	_, err := gen.Generate(context.Background(), testEvidence())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrGeneration)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Len(t, provider.requests, 1)
}

func TestGenerator_Generate_NoProvider(t *testing.T) {
	gen := NewGenerator(nil, Config{}, nil)
	_, err := gen.Generate(context.Background(), testEvidence())
	assert.ErrorIs(t, err, model.ErrGeneration)
	assert.Equal(t, "", gen.ProviderName())
}

func TestGenerator_Generate_LimiterError(t *testing.T) {
	provider := &fakeProvider{}
	gen := NewGenerator(provider, Config{MaxAttempts: 3}, &countingWaiter{err: context.Canceled})

	_, err := gen.Generate(context.Background(), testEvidence())
	assert.ErrorIs(t, err, model.ErrGeneration)
	assert.Empty(t, provider.requests)
}

func TestGenerator_Generate_CancelledContext(t *testing.T) {
	provider := &fakeProvider{}
	gen := NewGenerator(provider, Config{MaxAttempts: 3}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, testEvidence())
	assert.ErrorIs(t, err, model.ErrGeneration)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, provider.requests)
}

// cancellingProvider fails its first call and cancels the run
type cancellingProvider struct {
	fakeProvider
	cancel context.CancelFunc
}

func (c *cancellingProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	c.cancel()
	return nil, errors.New("503 overloaded")
}

func TestGenerator_Generate_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	provider := &cancellingProvider{cancel: cancel}
	gen := NewGenerator(provider, Config{MaxAttempts: 3}, nil)

	start := time.Now()
	_, err := gen.Generate(ctx, testEvidence())
	assert.ErrorIs(t, err, model.ErrGeneration)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), generateBaseBackoff)
}

func TestGenerator_Regenerate_AppendsViolations(t *testing.T) {
	noSleep(t)
	provider := &fakeProvider{responses: []*CompletionResponse{{Text: "fixed"}}}

	gen := NewGenerator(provider, Config{}, nil)
	_, err := gen.Regenerate(context.Background(), testEvidence(), []string{"unknown citation (Post ID: zzz)"})
	require.NoError(t, err)

	prompt := provider.requests[0].Prompt
	assert.True(t, strings.HasPrefix(prompt, BuildPersonaPrompt(testEvidence())))
	assert.Contains(t, prompt, "- unknown citation (Post ID: zzz)")
}
