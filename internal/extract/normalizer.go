package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/persona/internal/model"
	"golang.org/x/net/html"
)

// DefaultBodyCap is the reference per-item body limit in runes
const DefaultBodyCap = 500

// Normalizer converts raw retrieval records into evidence items
type Normalizer struct {
	bodyCap int
}

// NewNormalizer creates a normalizer; bodyCap <= 0 uses DefaultBodyCap
func NewNormalizer(bodyCap int) *Normalizer {
	if bodyCap <= 0 {
		bodyCap = DefaultBodyCap
	}
	return &Normalizer{bodyCap: bodyCap}
}

// Normalize produces one evidence item per raw record, preserving retrieval order.
// Empty input yields empty partitions, never an error.
func (n *Normalizer) Normalize(activity model.Activity) model.EvidenceSet {
	set := model.EvidenceSet{
		Posts:    make([]model.EvidenceItem, 0, len(activity.Submissions)),
		Comments: make([]model.EvidenceItem, 0, len(activity.Comments)),
	}

	for _, s := range activity.Submissions {
		set.Posts = append(set.Posts, model.EvidenceItem{
			ID:         s.ID,
			SourceType: model.SourcePost,
			Community:  s.Community,
			Title:      cleanText(s.Title, ""),
			Body:       Truncate(cleanText(s.Text, s.HTML), n.bodyCap),
			Timestamp:  s.CreatedAt.UTC(),
		})
	}

	for _, c := range activity.Comments {
		set.Comments = append(set.Comments, model.EvidenceItem{
			ID:         c.ID,
			SourceType: model.SourceComment,
			Community:  c.Community,
			Body:       Truncate(cleanText(c.Text, c.HTML), n.bodyCap),
			Timestamp:  c.CreatedAt.UTC(),
		})
	}

	return set
}

// Truncate hard-cuts s to at most limit runes. Words may be split.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// cleanText returns the plain text of a record. Reddit's JSON escapes &, < and >
// inside markdown fields; when the markdown is empty the rendered HTML is used.
func cleanText(text, rendered string) string {
	text = strings.TrimSpace(text)
	if text == "" && rendered != "" {
		// The parser already decodes entities in the rendered fragment
		return textFromHTML(html.UnescapeString(rendered))
	}
	return html.UnescapeString(text)
}

// textFromHTML extracts visible text from an HTML fragment
func textFromHTML(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlockElement(n.Data) {
			b.WriteString("\n")
		}
	}
	walk(doc)

	return strings.TrimSpace(collapseBlankLines(b.String()))
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "li", "br", "blockquote", "pre", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
		return true
	}
	return false
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
