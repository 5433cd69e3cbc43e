package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/persona/internal/llm"
	"github.com/ppiankov/persona/internal/model"
)

// targetEvidence is the evidence count that earns the full volume score
const targetEvidence = 15

// leakPenalty is subtracted per citation that does not resolve, capped at maxLeakPenalty
const (
	leakPenalty    = 5
	maxLeakPenalty = 20
)

// Scorer rates how well a persona is supported by its evidence
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate scores a persona and generates diagnostic signals
func (s *Scorer) Calculate(set model.EvidenceSet, report model.CitationReport) model.Confidence {
	var signals []model.Signal

	// 1. Evidence volume (0-30 points)
	volumeScore, volumeSignal := s.calculateVolume(set)
	signals = append(signals, volumeSignal)

	// 2. Citation coverage (0-30 points)
	coverageScore, coverageSignal := s.calculateCoverage(report)
	signals = append(signals, coverageSignal)

	// 3. Section coverage (0-20 points)
	sectionScore, sectionSignal := s.calculateSections(report)
	signals = append(signals, sectionSignal)

	// 4. Characteristics (0-10 points)
	charScore, charSignal := s.calculateCharacteristics(report)
	signals = append(signals, charSignal)

	// 5. Source balance and community spread (0-5 points each)
	balanceScore, balanceSignal := s.calculateBalance(set)
	signals = append(signals, balanceSignal)
	spreadScore, spreadSignal := s.calculateSpread(set)
	signals = append(signals, spreadSignal)

	total := volumeScore + coverageScore + sectionScore + charScore + balanceScore + spreadScore

	// 6. Citation leak (penalty)
	penalty, leakSignal := s.detectLeak(report)
	if penalty > 0 {
		signals = append(signals, leakSignal)
		total -= penalty
		if total < 0 {
			total = 0
		}
	}

	return model.Confidence{
		Level:   s.determineLevel(total, set.Len(), penalty > 0),
		Index:   total,
		Signals: signals,
	}
}

// calculateVolume scores the amount of evidence (0-30 points)
func (s *Scorer) calculateVolume(set model.EvidenceSet) (int, model.Signal) {
	count := set.Len()
	if count == 0 {
		return 0, model.Signal{
			Type:        model.SignalEvidenceVolume,
			Severity:    model.SeverityCritical,
			Description: "No posts or comments retrieved",
			Data: map[string]interface{}{
				"posts":    0,
				"comments": 0,
			},
		}
	}

	score := int(math.Min(float64(count)/targetEvidence*30, 30))

	severity := model.SeverityInfo
	if count < 5 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalEvidenceVolume,
		Severity:    severity,
		Description: fmt.Sprintf("Evidence items: %d posts, %d comments", len(set.Posts), len(set.Comments)),
		Data: map[string]interface{}{
			"posts":    len(set.Posts),
			"comments": len(set.Comments),
			"score":    score,
			"formula":  fmt.Sprintf("min(items / %d * 30, 30)", targetEvidence),
		},
	}
}

// calculateCoverage scores the share of cited bullets (0-30 points)
func (s *Scorer) calculateCoverage(report model.CitationReport) (int, model.Signal) {
	if report.Bullets == 0 {
		return 0, model.Signal{
			Type:        model.SignalCitationCoverage,
			Severity:    model.SeverityCritical,
			Description: "No bullets found in persona",
			Data:        map[string]interface{}{"bullets": 0},
		}
	}

	ratio := float64(report.CitedBullets) / float64(report.Bullets)
	score := int(ratio * 30)

	severity := model.SeverityInfo
	if ratio < 0.5 {
		severity = model.SeverityCritical
	} else if ratio < 1.0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalCitationCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Cited bullets: %d/%d (%.0f%%)", report.CitedBullets, report.Bullets, ratio*100),
		Data: map[string]interface{}{
			"bullets":       report.Bullets,
			"cited_bullets": report.CitedBullets,
			"ratio":         ratio,
			"score":         score,
			"formula":       "(cited_bullets / bullets) * 30",
		},
	}
}

// calculateSections scores required heading presence and order (0-20 points)
func (s *Scorer) calculateSections(report model.CitationReport) (int, model.Signal) {
	required := 0
	for _, c := range llm.Categories {
		if !c.Conditional {
			required++
		}
	}
	present := required - len(report.MissingHeadings)

	score := present * 20 / required
	score -= 2 * len(report.OutOfOrder)
	if score < 0 {
		score = 0
	}

	severity := model.SeverityInfo
	if len(report.MissingHeadings) > 0 || len(report.OutOfOrder) > 0 {
		severity = model.SeverityWarning
	}
	if present == 0 {
		severity = model.SeverityCritical
	}

	return score, model.Signal{
		Type:        model.SignalSectionCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Required sections: %d/%d present, %d out of order", present, required, len(report.OutOfOrder)),
		Data: map[string]interface{}{
			"present":      present,
			"required":     required,
			"missing":      report.MissingHeadings,
			"out_of_order": report.OutOfOrder,
			"score":        score,
			"formula":      "present / required * 20 - 2 * out_of_order",
		},
	}
}

// calculateCharacteristics scores distinct characteristics (0-10 points)
func (s *Scorer) calculateCharacteristics(report model.CitationReport) (int, model.Signal) {
	score := int(math.Min(float64(report.Characteristics)/llm.MinCharacteristics*10, 10))

	severity := model.SeverityInfo
	if report.Characteristics < llm.MinCharacteristics {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalCharacteristics,
		Severity:    severity,
		Description: fmt.Sprintf("Distinct characteristics: %d (minimum %d)", report.Characteristics, llm.MinCharacteristics),
		Data: map[string]interface{}{
			"characteristics": report.Characteristics,
			"score":           score,
		},
	}
}

// calculateBalance scores whether both posts and comments back the persona (0-5 points)
func (s *Scorer) calculateBalance(set model.EvidenceSet) (int, model.Signal) {
	score := 0
	if len(set.Posts) > 0 {
		score += 2
	}
	if len(set.Comments) > 0 {
		score += 3
	}

	severity := model.SeverityInfo
	if score < 5 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalSourceBalance,
		Severity:    severity,
		Description: fmt.Sprintf("Source mix: %d posts / %d comments", len(set.Posts), len(set.Comments)),
		Data: map[string]interface{}{
			"posts":    len(set.Posts),
			"comments": len(set.Comments),
			"score":    score,
		},
	}
}

// calculateSpread scores how many communities the evidence spans (0-5 points)
func (s *Scorer) calculateSpread(set model.EvidenceSet) (int, model.Signal) {
	communities := make(map[string]bool)
	for _, item := range set.Items() {
		if item.Community != "" {
			communities[item.Community] = true
		}
	}

	score := len(communities) * 5 / 3
	if score > 5 {
		score = 5
	}

	severity := model.SeverityInfo
	if len(communities) == 1 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalCommunitySpread,
		Severity:    severity,
		Description: fmt.Sprintf("Evidence spans %d subreddit(s)", len(communities)),
		Data: map[string]interface{}{
			"communities": len(communities),
			"score":       score,
		},
	}
}

// detectLeak penalizes citations that reference ids outside the evidence set
func (s *Scorer) detectLeak(report model.CitationReport) (int, model.Signal) {
	unknown := len(report.UnknownCitations)
	if unknown == 0 {
		return 0, model.Signal{}
	}

	penalty := unknown * leakPenalty
	if penalty > maxLeakPenalty {
		penalty = maxLeakPenalty
	}

	ids := make([]string, 0, unknown)
	for _, c := range report.UnknownCitations {
		ids = append(ids, c.SourceType.Label()+":"+c.ID)
	}

	return penalty, model.Signal{
		Type:        model.SignalCitationLeak,
		Severity:    model.SeverityCritical,
		Description: fmt.Sprintf("%d citation(s) reference ids not in the evidence", unknown),
		Data: map[string]interface{}{
			"unknown": ids,
			"penalty": penalty,
		},
	}
}

// determineLevel maps the index to a confidence level
func (s *Scorer) determineLevel(index int, evidenceCount int, leak bool) model.ConfidenceLevel {
	if evidenceCount < 3 {
		return model.ConfidenceLow
	}

	level := model.ConfidenceLow
	if index >= 75 {
		level = model.ConfidenceHigh
	} else if index >= 50 {
		level = model.ConfidenceMedium
	}

	if leak && level == model.ConfidenceHigh {
		level = model.ConfidenceMedium
	}
	return level
}
