package score

import (
	"fmt"
	"testing"

	"github.com/ppiankov/persona/internal/model"
)

func evidence(posts, comments int, communities ...string) model.EvidenceSet {
	var set model.EvidenceSet
	community := func(i int) string {
		if len(communities) == 0 {
			return "all"
		}
		return communities[i%len(communities)]
	}
	for i := 0; i < posts; i++ {
		set.Posts = append(set.Posts, model.EvidenceItem{ID: fmt.Sprintf("p%d", i), SourceType: model.SourcePost, Community: community(i)})
	}
	for i := 0; i < comments; i++ {
		set.Comments = append(set.Comments, model.EvidenceItem{ID: fmt.Sprintf("c%d", i), SourceType: model.SourceComment, Community: community(i)})
	}
	return set
}

func cleanReport() model.CitationReport {
	return model.CitationReport{
		Headings:        []string{"Interests", "Personality Traits", "Hobbies", "Behavioural", "Frustrations or Beliefs"},
		Bullets:         6,
		CitedBullets:    6,
		Characteristics: 6,
	}
}

func findSignal(signals []model.Signal, t model.SignalType) *model.Signal {
	for i := range signals {
		if signals[i].Type == t {
			return &signals[i]
		}
	}
	return nil
}

func TestScorer_Calculate_WellSupported(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Calculate(evidence(20, 10, "gaming", "cooking", "hiking"), cleanReport())

	if result.Index != 100 {
		t.Errorf("Expected index 100, got %d", result.Index)
	}
	if result.Level != model.ConfidenceHigh {
		t.Errorf("Expected high confidence, got %s", result.Level)
	}
	if findSignal(result.Signals, model.SignalCitationLeak) != nil {
		t.Error("Expected no citation leak signal")
	}
	if len(result.Signals) != 6 {
		t.Errorf("Expected 6 signals, got %d", len(result.Signals))
	}
}

func TestScorer_Calculate_EmptyEvidence(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Calculate(model.EvidenceSet{}, model.CitationReport{})

	if result.Level != model.ConfidenceLow {
		t.Errorf("Expected low confidence for empty evidence, got %s", result.Level)
	}
	volume := findSignal(result.Signals, model.SignalEvidenceVolume)
	if volume == nil || volume.Severity != model.SeverityCritical {
		t.Errorf("Expected critical evidence volume signal, got %+v", volume)
	}
	coverage := findSignal(result.Signals, model.SignalCitationCoverage)
	if coverage == nil || coverage.Severity != model.SeverityCritical {
		t.Errorf("Expected critical citation coverage signal, got %+v", coverage)
	}
}

func TestScorer_Calculate_FewItemsCapsAtLow(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Calculate(evidence(1, 1, "a", "b"), cleanReport())

	if result.Level != model.ConfidenceLow {
		t.Errorf("Expected low confidence with 2 items, got %s (index %d)", result.Level, result.Index)
	}
}

func TestScorer_Calculate_CitationLeak(t *testing.T) {
	scorer := NewScorer()

	report := cleanReport()
	report.UnknownCitations = []model.Citation{
		{SourceType: model.SourcePost, ID: "zzz"},
	}

	result := scorer.Calculate(evidence(20, 10, "gaming", "cooking", "hiking"), report)

	if result.Index != 100-leakPenalty {
		t.Errorf("Expected index %d, got %d", 100-leakPenalty, result.Index)
	}
	if result.Level != model.ConfidenceMedium {
		t.Errorf("Expected leak to cap confidence at medium, got %s", result.Level)
	}
	leak := findSignal(result.Signals, model.SignalCitationLeak)
	if leak == nil {
		t.Fatal("Expected citation leak signal")
	}
	if leak.Severity != model.SeverityCritical {
		t.Errorf("Expected critical severity, got %s", leak.Severity)
	}
}

func TestScorer_Calculate_LeakPenaltyCapped(t *testing.T) {
	scorer := NewScorer()

	report := cleanReport()
	for i := 0; i < 10; i++ {
		report.UnknownCitations = append(report.UnknownCitations, model.Citation{SourceType: model.SourceComment, ID: fmt.Sprintf("x%d", i)})
	}

	result := scorer.Calculate(evidence(20, 10, "a", "b", "c"), report)

	leak := findSignal(result.Signals, model.SignalCitationLeak)
	if leak == nil || leak.Data["penalty"] != maxLeakPenalty {
		t.Errorf("Expected penalty capped at %d, got %+v", maxLeakPenalty, leak)
	}
	if result.Index != 100-maxLeakPenalty {
		t.Errorf("Expected index %d, got %d", 100-maxLeakPenalty, result.Index)
	}
}

func TestScorer_CalculateCoverage(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		name     string
		bullets  int
		cited    int
		want     int
		severity model.SignalSeverity
	}{
		{"all cited", 10, 10, 30, model.SeverityInfo},
		{"most cited", 10, 8, 24, model.SeverityWarning},
		{"few cited", 10, 2, 6, model.SeverityCritical},
		{"no bullets", 0, 0, 0, model.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, signal := scorer.calculateCoverage(model.CitationReport{Bullets: tt.bullets, CitedBullets: tt.cited})
			if score != tt.want {
				t.Errorf("Expected score %d, got %d", tt.want, score)
			}
			if signal.Severity != tt.severity {
				t.Errorf("Expected severity %s, got %s", tt.severity, signal.Severity)
			}
		})
	}
}

func TestScorer_CalculateSections(t *testing.T) {
	scorer := NewScorer()

	score, signal := scorer.calculateSections(model.CitationReport{
		MissingHeadings: []string{"Hobbies"},
		OutOfOrder:      []string{"Interests"},
	})

	// 4 of 5 required present = 16, minus 2 for the reordering
	if score != 14 {
		t.Errorf("Expected score 14, got %d", score)
	}
	if signal.Severity != model.SeverityWarning {
		t.Errorf("Expected warning severity, got %s", signal.Severity)
	}
}

func TestScorer_CalculateSpreadAndBalance(t *testing.T) {
	scorer := NewScorer()

	spread, signal := scorer.calculateSpread(evidence(3, 0, "only"))
	if spread != 1 || signal.Severity != model.SeverityWarning {
		t.Errorf("Expected spread 1 with warning, got %d/%s", spread, signal.Severity)
	}

	balance, _ := scorer.calculateBalance(evidence(3, 0))
	if balance != 2 {
		t.Errorf("Expected balance 2 for posts only, got %d", balance)
	}
}
