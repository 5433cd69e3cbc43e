package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/pipeline"
	"github.com/ppiankov/persona/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Generate personas for many accounts from a file",
	Long: `Batch generates personas for every account listed in a file:
- One username or profile URL per line (# comments and blank lines ignored)
- Duplicates are processed once
- Accounts are processed in parallel with a bounded worker count
- A failure for one account never stops the others

Example:
  persona batch users.txt
  persona batch users.txt --concurrency 4 --output-dir ./personas
  persona batch users.txt --timeout 30m --citation-policy reject`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	workers := cfg.Concurrency.Workers
	if concurrency > 0 {
		workers = concurrency
	}

	identities, err := worker.ReadIdentitiesFromFile(file)
	if err != nil {
		return fmt.Errorf("read identities: %w", err)
	}
	if len(identities) == 0 {
		return fmt.Errorf("no identities found in %s", file)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Persona Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d accounts)\n", file, len(identities))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	p, err := pipeline.FromConfig(cfg, pipeline.BuildOptions{Persist: true, Logger: logger})
	if err != nil {
		return err
	}

	processor := worker.NewBatchProcessor(p, workers)
	processor.OnResult = func(r *worker.IdentityResult) {
		if r.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Identity, r.Error)
			return
		}
		fmt.Fprintf(os.Stderr, "✓ %s (confidence: %s, %d/100, %s)\n",
			r.Document.Username, r.Document.Confidence.Level, r.Document.Confidence.Index, r.Duration.Round(time.Millisecond))
	}

	results := processor.ProcessIdentities(ctx, identities)
	summary := worker.Summarize(results)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d accounts\n", summary.Total)
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", summary.Succeeded)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", summary.Total-summary.Succeeded)
	for _, kind := range sortedKinds(summary.Failed) {
		fmt.Fprintf(os.Stderr, "    %-20s %d\n", kind, summary.Failed[kind])
	}
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "\n")

	if summary.Succeeded == 0 {
		return fmt.Errorf("all %d accounts failed", summary.Total)
	}
	return nil
}

func sortedKinds(m map[model.ErrorKind]int) []model.ErrorKind {
	kinds := make([]model.ErrorKind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
