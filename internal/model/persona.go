package model

import "time"

// PersonaDocument is the final artifact for one identity.
// Text is the rendered form handed to persistence; the other fields are metadata.
type PersonaDocument struct {
	RunID       string    `json:"run_id"`
	Username    string    `json:"username"`
	AccountAge  int       `json:"account_age_years"`
	Body        string    `json:"body_md"` // Trimmed persona markdown
	Text        string    `json:"text"`    // Header + body + footer
	GeneratedAt time.Time `json:"generated_at"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Attempts int    `json:"attempts"`

	Evidence   EvidenceSet    `json:"evidence"`
	Citations  CitationReport `json:"citations"`
	Confidence Confidence     `json:"confidence"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// Citation is one evidence reference found in persona text
type Citation struct {
	SourceType SourceType `json:"source_type"`
	ID         string     `json:"id"`
}

// CitationReport is the outcome of validating persona text against its evidence set
type CitationReport struct {
	Headings            []string   `json:"headings"`                       // Category headings in document order
	MissingHeadings     []string   `json:"missing_headings,omitempty"`     // Required headings absent
	OutOfOrder          []string   `json:"out_of_order,omitempty"`         // Headings appearing after a later category
	Bullets             int        `json:"bullets"`                        // Bullets under category headings
	CitedBullets        int        `json:"cited_bullets"`                  // Bullets with at least one citation
	Characteristics     int        `json:"characteristics"`                // Distinct bullet labels
	UncitedBullets      []string   `json:"uncited_bullets,omitempty"`      // Text of bullets lacking citations
	Citations           []Citation `json:"citations"`                      // Every citation token, in order
	UnknownCitations    []Citation `json:"unknown_citations,omitempty"`    // Cited ids absent from evidence
	MislabeledCitations []Citation `json:"mislabeled_citations,omitempty"` // Id exists but under the other source type
}

// OK reports whether every bullet is cited and every citation resolves
func (r CitationReport) OK() bool {
	return len(r.UncitedBullets) == 0 && len(r.UnknownCitations) == 0
}

// Confidence summarizes how well-supported a persona is
type Confidence struct {
	Level   ConfidenceLevel `json:"level"`
	Index   int             `json:"index"` // 0-100
	Signals []Signal        `json:"signals"`
}

// ConfidenceLevel is a coarse rating of Confidence.Index
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Signal is a diagnostic with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalEvidenceVolume   SignalType = "evidence_volume"   // How much evidence backed the run
	SignalSourceBalance    SignalType = "source_balance"    // Mix of posts vs comments
	SignalCitationCoverage SignalType = "citation_coverage" // Cited bullets / total bullets
	SignalCitationLeak     SignalType = "citation_leak"     // Ids cited that were never supplied
	SignalSectionCoverage  SignalType = "section_coverage"  // Required category headings present
	SignalCharacteristics  SignalType = "characteristics"   // Distinct characteristics count
	SignalCommunitySpread  SignalType = "community_spread"  // Number of distinct subreddits
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
