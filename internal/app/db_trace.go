package app

import "strings"

const maxTracedQueryLength = 512

// formatDBQueryForTrace collapses a statement to one line and caps its length
// so the span attribute stays readable in the trace UI.
func formatDBQueryForTrace(query string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	if len(normalized) <= maxTracedQueryLength {
		return normalized
	}

	return normalized[:maxTracedQueryLength] + "..."
}
