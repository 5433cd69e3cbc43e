package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/persona/internal/extract"
	"github.com/ppiankov/persona/internal/llm"
	"github.com/ppiankov/persona/internal/logging"
	"github.com/ppiankov/persona/internal/metrics"
	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/reddit"
	"github.com/ppiankov/persona/internal/score"
	"github.com/ppiankov/persona/internal/validate"
)

// Retriever fetches the raw activity of one account
type Retriever interface {
	FetchActivity(ctx context.Context, username string) (*model.Activity, error)
}

// Deps are the collaborators a pipeline runs with. Store, Metrics and Logger are optional.
type Deps struct {
	Retriever Retriever
	Generator *llm.Generator
	Store     *Store
	Metrics   *metrics.Metrics
	Logger    *logging.Logger
}

// Pipeline orchestrates one persona run: parse, retrieve, normalize, budget,
// generate, validate citations, score and assemble.
type Pipeline struct {
	retriever  Retriever
	normalizer *extract.Normalizer
	budgeter   *extract.Budgeter
	generator  *llm.Generator
	validator  *validate.CitationValidator
	scorer     *score.Scorer
	store      *Store
	metrics    *metrics.Metrics
	logger     *logging.Logger
	config     *model.Config
	now        func() time.Time
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Pipeline{
		retriever:  deps.Retriever,
		normalizer: extract.NewNormalizer(cfg.Budget.BodyCap),
		budgeter:   extract.NewBudgeter(cfg.Budget, llm.EvidenceSize),
		generator:  deps.Generator,
		validator:  validate.NewCitationValidator(cfg.Citations.StrictTypes),
		scorer:     score.NewScorer(),
		store:      deps.Store,
		metrics:    deps.Metrics,
		logger:     logger,
		config:     cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run produces the persona document for one identity. The document is only
// persisted (when a store is configured) once it is complete.
func (p *Pipeline) Run(ctx context.Context, identity string) (*model.PersonaDocument, error) {
	start := time.Now()
	doc, err := p.run(ctx, identity)
	p.metrics.ObserveStage(metrics.StageTotal, time.Since(start))

	if err != nil {
		outcome := string(model.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		p.metrics.IncrementOutcome(outcome)
		p.logger.Warn("persona run failed", "identity", identity, "kind", outcome, "error", err)
		return nil, err
	}

	p.metrics.IncrementOutcome(metrics.OutcomeSuccess)
	p.logger.Info("persona generated",
		"username", doc.Username,
		"run_id", doc.RunID,
		"confidence", doc.Confidence.Level,
		"index", doc.Confidence.Index,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return doc, nil
}

func (p *Pipeline) run(ctx context.Context, identity string) (*model.PersonaDocument, error) {
	// 1. Parse identity
	username, err := reddit.ParseIdentity(identity)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := p.logger.With("run_id", runID, "username", username)

	// 2. Retrieve activity
	if p.retriever == nil {
		return nil, model.NewError(model.KindRetrieval, username, errors.New("no retriever configured"))
	}
	t := time.Now()
	activity, err := p.retriever.FetchActivity(ctx, username)
	p.metrics.ObserveStage(metrics.StageRetrieve, time.Since(t))
	if err != nil {
		return nil, withKind(err, model.KindRetrieval, username)
	}
	log.Debug("activity retrieved", "submissions", len(activity.Submissions), "comments", len(activity.Comments))

	// 3. Normalize and budget
	set := p.budgeter.Apply(p.normalizer.Normalize(*activity))
	p.metrics.ObserveEvidence(len(set.Posts), len(set.Comments))

	if set.IsEmpty() {
		if !p.config.Pipeline.AllowEmptyEvidence {
			return nil, model.NewError(model.KindEmptyEvidence, username,
				fmt.Errorf("u/%s has no retrievable posts or comments", username))
		}
		log.Warn("no evidence retrieved, persona will have low confidence")
	}

	// 4. Generate, then validate citations under the configured policy
	if p.generator == nil {
		return nil, model.NewError(model.KindGeneration, username, errors.New("no generator configured"))
	}
	t = time.Now()
	gen, err := p.generator.Generate(ctx, set)
	p.metrics.ObserveStage(metrics.StageGenerate, time.Since(t))
	if err != nil {
		return nil, withKind(err, model.KindGeneration, username)
	}

	t = time.Now()
	gen, report, attempts, err := p.enforceCitations(ctx, log, username, set, gen)
	p.metrics.ObserveStage(metrics.StageValidate, time.Since(t))
	if err != nil {
		return nil, err
	}

	// 5. Score and assemble
	confidence := p.scorer.Calculate(set, report)
	now := p.now()

	doc := &model.PersonaDocument{
		RunID:       runID,
		Username:    username,
		AccountAge:  AccountAgeYears(activity.AccountCreatedAt, now),
		Body:        strings.TrimSpace(gen.Text),
		Text:        Assemble(username, gen.Text, activity.AccountCreatedAt, now),
		GeneratedAt: now,
		Provider:    gen.Provider,
		Model:       gen.Model,
		Attempts:    attempts,
		Evidence:    set,
		Citations:   report,
		Confidence:  confidence,
		Warnings:    validate.Violations(report),
	}

	// 6. Persist
	if p.store != nil {
		t = time.Now()
		paths, err := p.store.Save(doc)
		p.metrics.ObserveStage(metrics.StagePersist, time.Since(t))
		if err != nil {
			return nil, fmt.Errorf("persist %s: %w", username, err)
		}
		log.Debug("persona written", "paths", paths)
	}

	return doc, nil
}

// enforceCitations checks gen against set and applies the citation policy.
// It returns the accepted generation, its report and the total backend calls made.
func (p *Pipeline) enforceCitations(ctx context.Context, log *logging.Logger, username string, set model.EvidenceSet, gen *llm.Generation) (*llm.Generation, model.CitationReport, int, error) {
	report := p.validator.Check(gen.Text, set)
	attempts := gen.Attempts
	p.recordViolations(report)

	if report.OK() {
		return gen, report, attempts, nil
	}

	switch p.config.Citations.Policy {
	case model.CitationReject:
		return nil, report, attempts, model.NewError(model.KindCitationViolation, username,
			errors.New(strings.Join(validate.Violations(report), "; ")))

	case model.CitationRetry:
		maxGenerations := p.config.Citations.MaxAttempts
		if maxGenerations < 1 {
			maxGenerations = 1
		}
		for i := 1; i < maxGenerations && !report.OK(); i++ {
			violations := validate.Violations(report)
			log.Info("regenerating persona after citation check", "attempt", i+1, "violations", len(violations))

			regen, err := p.generator.Regenerate(ctx, set, violations)
			if err != nil {
				// Keep the earlier text; it is still a complete document
				log.Warn("regeneration failed", "error", err)
				break
			}
			attempts += regen.Attempts

			next := p.validator.Check(regen.Text, set)
			p.recordViolations(next)
			if problemCount(next) <= problemCount(report) {
				gen, report = regen, next
			}
		}
	}

	if !report.OK() {
		log.Warn("persona has citation problems",
			"uncited", len(report.UncitedBullets),
			"unknown", len(report.UnknownCitations),
		)
	}
	return gen, report, attempts, nil
}

func (p *Pipeline) recordViolations(report model.CitationReport) {
	p.metrics.AddCitationViolations("uncited", len(report.UncitedBullets))
	p.metrics.AddCitationViolations("unknown", len(report.UnknownCitations))
	p.metrics.AddCitationViolations("mislabeled", len(report.MislabeledCitations))
}

func problemCount(r model.CitationReport) int {
	return len(r.UncitedBullets) + len(r.UnknownCitations)
}

// withKind tags err with kind unless it already carries one, and fills in the identity
func withKind(err error, kind model.ErrorKind, username string) error {
	var e *model.Error
	if errors.As(err, &e) {
		if e.Identity == "" {
			e.Identity = username
		}
		return err
	}
	return model.NewError(kind, username, err)
}
