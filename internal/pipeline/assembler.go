package pipeline

import (
	"fmt"
	"strings"
	"time"
)

const footer = `---

*Persona generated from publicly available Reddit comments and posts.*
All statements are AI-inferred and cite specific Post or Comment IDs.
`

// AccountAgeYears returns whole years between created and now, counted as
// completed 365-day blocks. A creation time after now yields 0.
func AccountAgeYears(created, now time.Time) int {
	if created.IsZero() || !now.After(created) {
		return 0
	}
	days := int(now.Sub(created).Hours() / 24)
	return days / 365
}

// Assemble renders the final persona text. Output depends only on its inputs.
func Assemble(username, body string, created, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Username: %s\n", username)
	fmt.Fprintf(&b, "Account Age: %d years\n\n", AccountAgeYears(created, now))
	if trimmed := strings.TrimSpace(body); trimmed != "" {
		b.WriteString(trimmed)
		b.WriteString("\n\n")
	}
	b.WriteString(footer)
	return b.String()
}
