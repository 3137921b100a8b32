package loader

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/kaptinlin/jsonrepair"
)

// RepairStats describes what was done to make an export decodable.
type RepairStats struct {
	OriginalBytes int           `json:"original_bytes"`
	RepairedBytes int           `json:"repaired_bytes"`
	CommentsLost  int           `json:"comments_lost"`
	ErrorsFixed   int           `json:"errors_fixed"`
	RepairTime    time.Duration `json:"repair_time"`
	Strategies    []string      `json:"strategies,omitempty"`
	WasRepaired   bool          `json:"was_repaired"`
}

// Repair makes hand-edited or truncated exports valid JSON. Cheap textual fixes run
// first (comments, trailing commas, unclosed brackets); the jsonrepair library
// handles whatever remains. None of the fixes touch the inside of string literals,
// so message content survives a repair byte for byte.
func Repair(raw string) (string, RepairStats, error) {
	start := time.Now()
	stats := RepairStats{OriginalBytes: len(raw)}
	done := func(s string, err error) (string, RepairStats, error) {
		stats.RepairedBytes = len(s)
		stats.RepairTime = time.Since(start)
		return s, stats, err
	}

	if json.Valid([]byte(raw)) {
		return done(raw, nil)
	}
	stats.WasRepaired = true
	repaired := raw

	apply := func(name string, fix func(string) string) {
		if fixed := fix(repaired); fixed != repaired {
			repaired = fixed
			stats.Strategies = append(stats.Strategies, name)
			stats.ErrorsFixed++
		}
	}

	apply("comments_removed", func(s string) string {
		out, n := removeComments(s)
		stats.CommentsLost += n
		return out
	})
	apply("trailing_commas", removeTrailingCommas)
	apply("completion", completeJSON)

	if json.Valid([]byte(repaired)) {
		return done(repaired, nil)
	}

	libraryRepaired, err := jsonrepair.JSONRepair(repaired)
	if err == nil && libraryRepaired != repaired {
		repaired = libraryRepaired
		stats.Strategies = append(stats.Strategies, "jsonrepair_library")
		stats.ErrorsFixed++
	}

	if !json.Valid([]byte(repaired)) {
		return done(repaired, fmt.Errorf("JSON repair failed after %d strategies", len(stats.Strategies)))
	}
	return done(repaired, nil)
}

// scanner tracks whether a position of a JSON text lies inside a string literal.
type scanner struct {
	inString, escaped bool
}

// step consumes c and reports whether it belongs to a string literal, quotes
// included.
func (sc *scanner) step(c byte) bool {
	switch {
	case sc.escaped:
		sc.escaped = false
		return true
	case sc.inString && c == '\\':
		sc.escaped = true
		return true
	case c == '"':
		sc.inString = !sc.inString
		return true
	}
	return sc.inString
}

// removeComments drops // and /* */ comments outside strings and returns how many
// it removed. An unterminated block comment runs to the end of the input.
func removeComments(s string) (string, int) {
	var b strings.Builder
	var sc scanner
	count := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if sc.step(c) || c != '/' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case '/':
			count++
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				i = len(s)
				continue
			}
			i += end - 1
		case '*':
			count++
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
				continue
			}
			i += end + 3
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), count
}

// removeTrailingCommas drops commas outside strings that are followed, after
// optional whitespace, by a closing brace or bracket.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	var sc scanner
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !sc.step(c) && c == ',' {
			j := i + 1
			for j < len(s) && unicode.IsSpace(rune(s[j])) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// completeJSON closes brackets left open by a truncated export, ignoring brackets
// inside strings.
func completeJSON(s string) string {
	var stack []byte
	var sc scanner
	for i := 0; i < len(s); i++ {
		c := s[i]
		if sc.step(c) {
			continue
		}
		switch {
		case c == '{':
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case c == '}' || c == ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if !sc.inString && len(stack) == 0 {
		return s
	}

	var b strings.Builder
	if sc.inString {
		b.WriteString(s)
		b.WriteByte('"')
	} else {
		b.WriteString(strings.TrimRightFunc(s, unicode.IsSpace))
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}
