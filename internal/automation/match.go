package automation

import (
	"fmt"
	"strconv"
	"strings"
)

// roundPrefixes maps schedule round identifiers to the single-letter prefix
// used in display match names ("Q12", "F3").
var roundPrefixes = map[string]string{
	"qual":  "Q",
	"top_n": "F",
}

// FormatMatchName builds a display name from a match descriptor. The
// descriptor is either a preformatted string or an object with "round" and
// "match" keys. Returns "" when no name can be derived.
func FormatMatchName(match any) string {
	switch m := match.(type) {
	case string:
		return m
	case map[string]any:
		round, _ := m["round"].(string)
		if round == "" {
			return ""
		}

		prefix, ok := roundPrefixes[strings.ToLower(round)]
		if !ok {
			prefix = strings.ToUpper(round[:1])
		}

		switch num := m["match"].(type) {
		case float64:
			return fmt.Sprintf("%s%d", prefix, int(num))
		case string:
			return prefix + num
		default:
			return prefix
		}
	default:
		return ""
	}
}

// MatchNumber extracts the numeric part of a display match name, used to
// pick the matching track in a numbered playlist. Returns false when the
// name carries no number.
func MatchNumber(name string) (int, bool) {
	i := strings.IndexFunc(name, func(r rune) bool { return r >= '0' && r <= '9' })
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}
