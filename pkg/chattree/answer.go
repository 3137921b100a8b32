package chattree

import "strings"

// PlaceholderPrefix marks answers that are still being generated. The trailing dash is
// part of the prefix: "answer-placeholder" on its own is a regular id.
const PlaceholderPrefix = "answer-placeholder-"

// IsValidGeneratedAnswer reports whether m is a real, displayable answer.
func IsValidGeneratedAnswer(m Message) bool {
	if !m.IsAnswer {
		return false
	}
	if m.IsOpeningStatement {
		return false
	}
	return !strings.HasPrefix(m.ID, PlaceholderPrefix)
}

// LastAnswer scans items from the end and returns the first valid generated answer.
func LastAnswer[T Item](items []T) (T, bool) {
	for i := len(items) - 1; i >= 0; i-- {
		if IsValidGeneratedAnswer(items[i].AsMessage()) {
			return items[i], true
		}
	}
	var zero T
	return zero, false
}
