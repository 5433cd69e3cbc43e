package validate

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ppiankov/persona/internal/llm"
	"github.com/ppiankov/persona/internal/model"
)

// citationLabel matches the start of a citation such as "Post ID:" or "Comment IDs:"
var citationLabel = regexp.MustCompile(`(?i)\b(post|comment)\s+ids?\s*[:#]\s*`)

// headingNoise strips numbering and markup around category headings ("1. **Interests:**")
var headingNoise = regexp.MustCompile(`^[\s#*_\d.)-]+|[\s*_:]+$`)

// redditPrefixes are fullname prefixes models sometimes keep on ids
var redditPrefixes = []string{"t1_", "t3_"}

// CitationValidator checks generated persona markdown against the evidence it was built from
type CitationValidator struct {
	strictTypes bool
	md          goldmark.Markdown
}

// NewCitationValidator creates a validator. With strictTypes, a Comment id cited
// as a Post (or the reverse) counts as an unknown citation rather than a mislabel.
func NewCitationValidator(strictTypes bool) *CitationValidator {
	return &CitationValidator{
		strictTypes: strictTypes,
		md:          goldmark.New(),
	}
}

// Check parses body and reports headings, bullets and citations
func (v *CitationValidator) Check(body string, set model.EvidenceSet) model.CitationReport {
	source := []byte(body)
	doc := v.md.Parser().Parse(text.NewReader(source))

	report := model.CitationReport{
		Headings:  []string{},
		Citations: []model.Citation{},
	}
	seen := make(map[string]bool)
	labels := make(map[string]bool)
	maxIndex := -1

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			v.recordHeading(&report, nodeText(node, source), seen, &maxIndex)
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph:
			// Some models write "**Interests**" as a paragraph instead of a heading
			if _, inList := node.Parent().(*ast.ListItem); !inList {
				line := nodeText(node, source)
				if !strings.Contains(line, "\n") && categoryIndex(line) >= 0 {
					v.recordHeading(&report, line, seen, &maxIndex)
					return ast.WalkSkipChildren, nil
				}
			}

		case *ast.ListItem:
			itemText, hasSublist := listItemText(node, source)
			if hasSublist && len(findCitations(itemText)) == 0 {
				// Grouping label; its children are the bullets
				return ast.WalkContinue, nil
			}
			if strings.TrimSpace(itemText) == "" {
				return ast.WalkContinue, nil
			}
			v.recordBullet(&report, itemText, set, labels)
		}
		return ast.WalkContinue, nil
	})

	for _, c := range llm.Categories {
		if !c.Conditional && !seen[c.Name] {
			report.MissingHeadings = append(report.MissingHeadings, c.Name)
		}
	}
	report.Characteristics = len(labels)

	return report
}

func (v *CitationValidator) recordHeading(report *model.CitationReport, raw string, seen map[string]bool, maxIndex *int) {
	idx := categoryIndex(raw)
	if idx < 0 {
		return
	}
	name := llm.Categories[idx].Name
	if seen[name] {
		return
	}
	seen[name] = true
	report.Headings = append(report.Headings, name)
	if idx < *maxIndex {
		report.OutOfOrder = append(report.OutOfOrder, name)
	} else {
		*maxIndex = idx
	}
}

func (v *CitationValidator) recordBullet(report *model.CitationReport, itemText string, set model.EvidenceSet, labels map[string]bool) {
	report.Bullets++

	citations := findCitations(itemText)
	if len(citations) == 0 {
		report.UncitedBullets = append(report.UncitedBullets, strings.TrimSpace(itemText))
	} else {
		report.CitedBullets++
	}

	for _, c := range citations {
		report.Citations = append(report.Citations, c)
		switch {
		case resolve(set, c.SourceType, c.ID):
		case resolve(set, otherType(c.SourceType), c.ID):
			report.MislabeledCitations = append(report.MislabeledCitations, c)
			if v.strictTypes {
				report.UnknownCitations = append(report.UnknownCitations, c)
			}
		default:
			report.UnknownCitations = append(report.UnknownCitations, c)
		}
	}

	if label := bulletLabel(itemText); label != "" {
		labels[label] = true
	}
}

// Violations lists human-readable problems found in a report
func Violations(report model.CitationReport) []string {
	var out []string
	for _, b := range report.UncitedBullets {
		out = append(out, fmt.Sprintf("bullet has no citation: %q", truncateForMessage(b)))
	}
	for _, c := range report.UnknownCitations {
		out = append(out, fmt.Sprintf("cites an id not in the evidence (%s ID: %s)", c.SourceType.Label(), c.ID))
	}
	for _, h := range report.MissingHeadings {
		out = append(out, fmt.Sprintf("missing heading: %s", h))
	}
	for _, h := range report.OutOfOrder {
		out = append(out, fmt.Sprintf("heading out of order: %s", h))
	}
	if report.Characteristics < llm.MinCharacteristics {
		out = append(out, fmt.Sprintf("only %d distinct characteristics (want at least %d)", report.Characteristics, llm.MinCharacteristics))
	}
	return out
}

// findCitations extracts every citation in s, in order.
// "Post IDs: a, b" yields two citations; a following "Comment ID:" starts a new run.
func findCitations(s string) []model.Citation {
	var out []model.Citation
	for _, loc := range citationLabel.FindAllStringSubmatchIndex(s, -1) {
		sourceType := model.SourcePost
		if strings.EqualFold(s[loc[2]:loc[3]], "comment") {
			sourceType = model.SourceComment
		}
		for _, id := range scanIDs(s[loc[1]:]) {
			out = append(out, model.Citation{SourceType: sourceType, ID: id})
		}
	}
	return out
}

// scanIDs reads a comma-separated id list from the start of s
func scanIDs(s string) []string {
	var ids []string
	for {
		s = strings.TrimLeft(s, " \t")
		n := 0
		for n < len(s) && isIDByte(s[n]) {
			n++
		}
		if n == 0 {
			break
		}
		tok := s[:n]
		if strings.EqualFold(tok, "post") || strings.EqualFold(tok, "comment") {
			break
		}
		ids = append(ids, tok)

		rest := strings.TrimLeft(s[n:], " \t")
		if !strings.HasPrefix(rest, ",") {
			break
		}
		s = rest[1:]
	}
	return ids
}

func isIDByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func resolve(set model.EvidenceSet, t model.SourceType, id string) bool {
	if set.Contains(t, id) {
		return true
	}
	for _, p := range redditPrefixes {
		if trimmed, ok := strings.CutPrefix(id, p); ok && set.Contains(t, trimmed) {
			return true
		}
	}
	return false
}

func otherType(t model.SourceType) model.SourceType {
	if t == model.SourcePost {
		return model.SourceComment
	}
	return model.SourcePost
}

// categoryIndex maps heading text to its position in llm.Categories, or -1
func categoryIndex(raw string) int {
	name := strings.TrimSpace(raw)
	if i := strings.Index(name, "("); i > 0 {
		name = name[:i] // "Demographics (if inferable)"
	}
	name = headingNoise.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	for i, c := range llm.Categories {
		if strings.EqualFold(name, c.Name) {
			return i
		}
	}
	// British and American spellings both show up
	if strings.EqualFold(name, "Behavioral") || strings.EqualFold(name, "Behaviour") || strings.EqualFold(name, "Behavior") {
		return categoryIndex("Behavioural")
	}
	return -1
}

// bulletLabel returns the normalized characteristic name of a bullet ("Enjoys gaming: ...")
func bulletLabel(itemText string) string {
	line := itemText
	if loc := citationLabel.FindStringIndex(line); loc != nil {
		line = line[:loc[0]]
	}
	if i := strings.Index(line, ":"); i > 0 {
		line = line[:i]
	}
	line = strings.Trim(line, " \t*_()-.\n")
	return strings.ToLower(line)
}

// nodeText concatenates the raw source lines of a block node
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return strings.TrimSpace(buf.String())
}

// listItemText returns the item's own text and whether it nests another list
func listItemText(item *ast.ListItem, source []byte) (string, bool) {
	var parts []string
	hasSublist := false
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch c.(type) {
		case *ast.List:
			hasSublist = true
		default:
			if t := nodeText(c, source); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " "), hasSublist
}

func truncateForMessage(s string) string {
	r := []rune(s)
	if len(r) <= 80 {
		return s
	}
	return string(r[:80]) + "..."
}
