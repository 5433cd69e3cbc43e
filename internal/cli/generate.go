package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/pipeline"
)

var (
	genTimeout time.Duration
	toStdout   bool
	writeHTML  bool
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate <username|profile-url>",
	Short: "Generate a cited persona for one Reddit account",
	Long: `Generate retrieves a Reddit account's recent public posts and comments and
builds a persona in which every characteristic cites its source:
- Fetch recent submissions, comments and account age
- Normalize and bound the evidence
- Ask the configured LLM for a structured persona
- Check every citation against the retrieved evidence
- Write {username}_persona.txt (plus .json / .html sidecars)

Example:
  persona generate kojied
  persona generate https://www.reddit.com/user/kojied/ --output-dir ./personas
  persona generate u/kojied --provider anthropic --citation-policy retry
  persona generate kojied --provider ollama --model llama3.1 --stdout`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 3*time.Minute, "overall timeout for the run")
	generateCmd.Flags().BoolVar(&toStdout, "stdout", false, "also print the persona to stdout")
	generateCmd.Flags().BoolVar(&writeHTML, "html", false, "also write an HTML rendering")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	identity := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, genTimeout)
	defer cancel()

	if writeHTML {
		cfg.Output.WriteHTML = true
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Generating persona: %s\n", identity)
		fmt.Fprintf(os.Stderr, "LLM: %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Fprintf(os.Stderr, "Citation policy: %s\n", cfg.Citations.Policy)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	p, err := pipeline.FromConfig(cfg, pipeline.BuildOptions{Persist: true, Logger: logger})
	if err != nil {
		return err
	}

	doc, err := p.Run(ctx, identity)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}

	printDocumentSummary(doc, pipeline.NewStore(cfg.Output).TextPath(doc.Username))

	if toStdout {
		fmt.Print(doc.Text)
	}
	return nil
}

func printDocumentSummary(doc *model.PersonaDocument, path string) {
	fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
	fmt.Fprintf(os.Stderr, "  Evidence:   %d posts, %d comments\n", len(doc.Evidence.Posts), len(doc.Evidence.Comments))
	fmt.Fprintf(os.Stderr, "  Citations:  %d (%d/%d bullets cited)\n",
		len(doc.Citations.Citations), doc.Citations.CitedBullets, doc.Citations.Bullets)
	fmt.Fprintf(os.Stderr, "  Confidence: %s (%d/100)\n", doc.Confidence.Level, doc.Confidence.Index)

	if len(doc.Warnings) > 0 {
		fmt.Fprintf(os.Stderr, "\n⚠ %d warning(s):\n", len(doc.Warnings))
		for _, w := range doc.Warnings {
			fmt.Fprintf(os.Stderr, "  - %s\n", w)
		}
	}
}
