package extract

import "github.com/ppiankov/persona/internal/model"

// Reference caps per source type
const (
	DefaultMaxPosts    = 20
	DefaultMaxComments = 10
)

// itemOverhead approximates the labels rendered around each item
const itemOverhead = 48

// SizeFunc measures the rendered size of an evidence set in characters
type SizeFunc func(model.EvidenceSet) int

// Budgeter bounds an evidence set to a fixed number of items per source type
// and, optionally, a total rendered size.
type Budgeter struct {
	MaxPosts    int
	MaxComments int
	MaxChars    int // 0 disables the size bound
	Size        SizeFunc
}

// NewBudgeter creates a budgeter from configuration; zero caps use the reference policy
func NewBudgeter(cfg model.BudgetConfig, size SizeFunc) *Budgeter {
	b := &Budgeter{
		MaxPosts:    cfg.MaxPosts,
		MaxComments: cfg.MaxComments,
		MaxChars:    cfg.MaxChars,
		Size:        size,
	}
	if b.MaxPosts <= 0 {
		b.MaxPosts = DefaultMaxPosts
	}
	if b.MaxComments <= 0 {
		b.MaxComments = DefaultMaxComments
	}
	if b.Size == nil {
		b.Size = EstimateSize
	}
	return b
}

// Apply keeps the first MaxPosts posts and MaxComments comments in supplied order.
// When the size bound is exceeded, items are dropped from the tail of the larger
// partition until the set fits.
func (b *Budgeter) Apply(set model.EvidenceSet) model.EvidenceSet {
	out := model.EvidenceSet{
		Posts:    head(set.Posts, b.MaxPosts),
		Comments: head(set.Comments, b.MaxComments),
	}

	if b.MaxChars <= 0 {
		return out
	}
	size := b.Size
	if size == nil {
		size = EstimateSize
	}
	for !out.IsEmpty() && size(out) > b.MaxChars {
		if len(out.Posts) >= len(out.Comments) {
			out.Posts = out.Posts[:len(out.Posts)-1]
		} else {
			out.Comments = out.Comments[:len(out.Comments)-1]
		}
	}
	return out
}

// EstimateSize approximates the rendered evidence block without rendering it
func EstimateSize(set model.EvidenceSet) int {
	total := 0
	for _, item := range set.Items() {
		total += itemOverhead + len(item.ID) + len(item.Community) + len(item.Title) + len(item.Body)
	}
	return total
}

// head returns a copy of the first n items
func head(items []model.EvidenceItem, n int) []model.EvidenceItem {
	if len(items) < n {
		n = len(items)
	}
	out := make([]model.EvidenceItem, n)
	copy(out, items[:n])
	return out
}
