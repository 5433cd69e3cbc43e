package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ppiankov/persona/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItems(t model.SourceType, n int) []model.EvidenceItem {
	items := make([]model.EvidenceItem, n)
	for i := range items {
		items[i] = model.EvidenceItem{ID: fmt.Sprintf("%s%d", t, i), SourceType: t, Body: "body"}
	}
	return items
}

func TestBudgeter_CapsEachPartition(t *testing.T) {
	b := NewBudgeter(model.BudgetConfig{}, nil)

	out := b.Apply(model.EvidenceSet{
		Posts:    makeItems(model.SourcePost, 50),
		Comments: makeItems(model.SourceComment, 40),
	})

	require.Len(t, out.Posts, 20)
	require.Len(t, out.Comments, 10)
	for i, p := range out.Posts {
		assert.Equal(t, fmt.Sprintf("post%d", i), p.ID, "posts must be the first 20 in supplied order")
	}
	assert.Equal(t, "comment9", out.Comments[9].ID)
}

func TestBudgeter_KeepsAllWhenUnderCap(t *testing.T) {
	b := NewBudgeter(model.BudgetConfig{MaxPosts: 20, MaxComments: 10}, nil)

	out := b.Apply(model.EvidenceSet{
		Posts:    makeItems(model.SourcePost, 3),
		Comments: makeItems(model.SourceComment, 2),
	})

	assert.Len(t, out.Posts, 3)
	assert.Len(t, out.Comments, 2)
}

func TestBudgeter_EmptySet(t *testing.T) {
	out := NewBudgeter(model.BudgetConfig{}, nil).Apply(model.EvidenceSet{})
	assert.True(t, out.IsEmpty())
	assert.NotNil(t, out.Posts)
	assert.NotNil(t, out.Comments)
}

func TestBudgeter_DoesNotAliasInput(t *testing.T) {
	in := model.EvidenceSet{Posts: makeItems(model.SourcePost, 5)}
	out := NewBudgeter(model.BudgetConfig{MaxPosts: 3}, nil).Apply(in)

	out.Posts[0].ID = "changed"
	assert.Equal(t, "post0", in.Posts[0].ID)
}

func TestBudgeter_CharacterBudget(t *testing.T) {
	size := func(s model.EvidenceSet) int { return s.Len() * 100 }
	b := NewBudgeter(model.BudgetConfig{MaxPosts: 20, MaxComments: 10, MaxChars: 1000}, size)

	out := b.Apply(model.EvidenceSet{
		Posts:    makeItems(model.SourcePost, 8),
		Comments: makeItems(model.SourceComment, 4),
	})

	assert.LessOrEqual(t, size(out), 1000)
	assert.Equal(t, 10, out.Len())
	// Tail of the larger partition goes first
	assert.Len(t, out.Posts, 6)
	assert.Len(t, out.Comments, 4)
	assert.Equal(t, "post5", out.Posts[5].ID)
}

func TestBudgeter_CharacterBudgetDisabled(t *testing.T) {
	huge := model.EvidenceItem{ID: "p", Body: strings.Repeat("x", 100000)}
	out := NewBudgeter(model.BudgetConfig{}, nil).Apply(model.EvidenceSet{Posts: []model.EvidenceItem{huge}})
	assert.Len(t, out.Posts, 1)
}

func TestBudgeter_LiteralWithoutSizeFunc(t *testing.T) {
	b := &Budgeter{MaxPosts: 20, MaxComments: 10, MaxChars: 10}
	in := model.EvidenceSet{Posts: makeItems(model.SourcePost, 3), Comments: makeItems(model.SourceComment, 2)}

	var out model.EvidenceSet
	require.NotPanics(t, func() { out = b.Apply(in) })
	assert.LessOrEqual(t, EstimateSize(out), 10)
}

func TestEstimateSize(t *testing.T) {
	set := model.EvidenceSet{Posts: []model.EvidenceItem{{ID: "ab", Community: "go", Title: "t", Body: "body"}}}
	assert.Equal(t, itemOverhead+2+2+1+4, EstimateSize(set))
}
