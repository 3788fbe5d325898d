package normalization

import (
	"regexp"
	"strings"
)

var multiWhitespace = regexp.MustCompile(`\s+`)

// Canonicalize maps raw word text to the stable dedup key used by the
// word table and by lookup-time matching:
//
//   - trim outer whitespace
//   - collapse whitespace runs to a single space
//   - strip leading/trailing ASCII punctuation
//   - lowercase
//   - internal spaces become single hyphens
//   - remaining ASCII punctuation is dropped, repeated hyphens collapse
//
// The result is idempotent: Canonicalize(Canonicalize(x)) == Canonicalize(x).
// ok is false when nothing survives normalization.
func Canonicalize(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}

	collapsed := multiWhitespace.ReplaceAllString(trimmed, " ")
	stripped := strings.TrimSpace(strings.TrimFunc(collapsed, isASCIIPunct))
	if stripped == "" {
		return "", false
	}

	replaced := strings.ReplaceAll(strings.ToLower(stripped), " ", "-")
	var b strings.Builder
	b.Grow(len(replaced))
	lastDash := false
	for _, ch := range replaced {
		switch {
		case ch == '-':
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		case isASCIIPunct(ch):
			// dropped
		default:
			b.WriteRune(ch)
			lastDash = false
		}
	}

	normalized := strings.Trim(b.String(), "-")
	if normalized == "" {
		return "", false
	}
	return normalized, true
}

func isASCIIPunct(ch rune) bool {
	return ch < 0x80 && (ch >= '!' && ch <= '/' ||
		ch >= ':' && ch <= '@' ||
		ch >= '[' && ch <= '`' ||
		ch >= '{' && ch <= '~')
}
