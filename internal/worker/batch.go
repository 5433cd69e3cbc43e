package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/persona/internal/model"
)

// Runner produces a persona for one identity
type Runner interface {
	Run(ctx context.Context, identity string) (*model.PersonaDocument, error)
}

// IdentityJob runs the pipeline for one identity
type IdentityJob struct {
	Index    int
	Identity string
	Runner   Runner
}

// Execute executes the job
func (j *IdentityJob) Execute(ctx context.Context) Result {
	start := time.Now()
	doc, err := j.Runner.Run(ctx, j.Identity)
	return &IdentityResult{
		Index:    j.Index,
		Identity: j.Identity,
		Document: doc,
		Error:    err,
		Duration: time.Since(start),
	}
}

// IdentityResult is the outcome for one identity in a batch
type IdentityResult struct {
	Index    int // Position in the input list
	Identity string
	Document *model.PersonaDocument
	Error    error
	Duration time.Duration
}

// GetError returns the error from the result
func (r *IdentityResult) GetError() error {
	return r.Error
}

// BatchSummary counts outcomes of a batch by error kind
type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    map[model.ErrorKind]int
}

// Summarize counts successes and failures by kind; unclassified errors count as "unknown"
func Summarize(results []*IdentityResult) BatchSummary {
	s := BatchSummary{Total: len(results), Failed: make(map[model.ErrorKind]int)}
	for _, r := range results {
		if r.Error == nil {
			s.Succeeded++
			continue
		}
		kind := model.KindOf(r.Error)
		if kind == "" {
			kind = "unknown"
		}
		s.Failed[kind]++
	}
	return s
}

// BatchProcessor runs many identities through a bounded worker pool.
// A failure for one identity never stops the others.
type BatchProcessor struct {
	runner      Runner
	concurrency int

	// OnResult, if set, is called as each identity completes (from a single goroutine)
	OnResult func(*IdentityResult)
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(runner Runner, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// ProcessIdentities runs every identity and returns results in input order
func (b *BatchProcessor) ProcessIdentities(ctx context.Context, identities []string) []*IdentityResult {
	if len(identities) == 0 {
		return []*IdentityResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	submitted := make(chan int, 1)
	go func() {
		n := 0
		for i, identity := range identities {
			if !pool.Submit(&IdentityJob{Index: i, Identity: identity, Runner: b.runner}) {
				break
			}
			n++
		}
		pool.Close()
		submitted <- n
	}()

	results := make([]*IdentityResult, 0, len(identities))
	for r := range pool.Results() {
		res := r.(*IdentityResult)
		results = append(results, res)
		if b.OnResult != nil {
			b.OnResult(res)
		}
	}
	<-submitted

	// Identities never started (context cancelled) are reported, not dropped
	done := make(map[int]bool, len(results))
	for _, r := range results {
		done[r.Index] = true
	}
	for i, identity := range identities {
		if done[i] {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = fmt.Errorf("not processed")
		}
		results = append(results, &IdentityResult{Index: i, Identity: identity, Error: err})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

// ProcessFile reads identities from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*IdentityResult, error) {
	identities, err := ReadIdentitiesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read identities: %w", err)
	}

	return b.ProcessIdentities(ctx, identities), nil
}

// ReadIdentitiesFromFile reads usernames or profile URLs from a file (one per line).
// Blank lines and # comments are skipped; duplicates are dropped.
func ReadIdentitiesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var identities []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			identities = append(identities, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return identities, nil
}
