package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/persona/internal/model"
)

// Category is one required persona section
type Category struct {
	Name        string
	Conditional bool // May be omitted when no evidence supports it
}

// Categories lists the persona sections in the order they must appear
var Categories = []Category{
	{Name: "Interests"},
	{Name: "Personality Traits"},
	{Name: "Demographics", Conditional: true},
	{Name: "Location", Conditional: true},
	{Name: "Hobbies"},
	{Name: "Behavioural"},
	{Name: "Frustrations or Beliefs"},
}

// MinCharacteristics is the minimum number of distinct characteristics requested
const MinCharacteristics = 5

// SystemPrompt restates the evidence-only constraint for backends that take a system message
const SystemPrompt = `You are an analyst building user personas from public Reddit activity.
Use only the posts and comments supplied in the request. Never invent facts, ids or placeholders.
Every claim must cite the Post ID or Comment ID it is derived from.`

const personaInstructions = `Based on the Reddit posts and comments below, create a detailed user persona.

Organize the persona under these markdown headings, in exactly this order:
%s

Rules:
- Include at least %d distinct characteristics in total, written as bullets ("- Label: detail").
- Every bullet must end with the id(s) it is derived from, written as (Post ID: xxx) or (Comment ID: yyy).
- Only cite ids that appear in the evidence below. Do not guess, and never write placeholder ids like XXX.
- Headings marked "if inferable" may be omitted when no evidence supports them.
- Do not use any knowledge about this user from outside the evidence below.

Example bullet:
- Enjoys open-world games: Frequently discusses Skyrim strategies (Comment ID: abcd123).

%s`

// HeadingList renders the ordered category headings as the template expects
func HeadingList() string {
	var sb strings.Builder
	for _, c := range Categories {
		sb.WriteString("## ")
		sb.WriteString(c.Name)
		if c.Conditional {
			sb.WriteString(" (if inferable)")
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// RenderEvidence renders the evidence set as the two-section context block
func RenderEvidence(set model.EvidenceSet) string {
	var sb strings.Builder

	sb.WriteString("## User Posts:\n")
	if len(set.Posts) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, p := range set.Posts {
		fmt.Fprintf(&sb, "Post ID: %s\nSubreddit: %s\nTitle: %s\nBody: %s\n\n", p.ID, p.Community, p.Title, p.Body)
	}

	sb.WriteString("\n## User Comments:\n")
	if len(set.Comments) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, c := range set.Comments {
		fmt.Fprintf(&sb, "Comment ID: %s\nSubreddit: %s\nComment: %s\n\n", c.ID, c.Community, c.Body)
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// EvidenceSize returns the rendered size of the evidence block in runes
func EvidenceSize(set model.EvidenceSet) int {
	return len([]rune(RenderEvidence(set)))
}

// BuildPersonaPrompt embeds the evidence block in the persona instruction template
func BuildPersonaPrompt(set model.EvidenceSet) string {
	return fmt.Sprintf(personaInstructions, HeadingList(), MinCharacteristics, RenderEvidence(set))
}

// correctionPrompt is appended when a previous attempt cited unknown ids or left bullets uncited
func correctionPrompt(violations []string) string {
	var sb strings.Builder
	sb.WriteString("\n\nYour previous answer broke the citation rules:\n")
	for _, v := range violations {
		sb.WriteString("- ")
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	sb.WriteString("Rewrite the persona so every bullet cites only ids from the evidence above.")
	return sb.String()
}
