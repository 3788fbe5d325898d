package validation

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxTags         = 20
	MaxNoteLength   = 512
	MaxSenseTextLen = 512
)

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,24}$`)

// NonEmptyText trims and bounds-checks free text (word text, sense text).
func NonEmptyText(field, text string) (string, error) {
	value := strings.TrimSpace(text)
	if value == "" {
		return "", fmt.Errorf("%s cannot be blank", field)
	}
	if n := len([]rune(value)); n > MaxSenseTextLen {
		return "", fmt.Errorf("%s too long: %d characters (max %d)", field, n, MaxSenseTextLen)
	}
	return value, nil
}

// Note validates an optional note. A provided note must be non-blank
// after trimming and within the length bound; nil passes through.
func Note(field string, note *string) (*string, error) {
	if note == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil, fmt.Errorf("%s cannot be blank", field)
	}
	if n := len([]rune(trimmed)); n > MaxNoteLength {
		return nil, fmt.Errorf("%s too long: %d characters (max %d)", field, n, MaxNoteLength)
	}
	return &trimmed, nil
}

// NormalizeTags trims, validates and case-insensitively deduplicates a
// tag list. Original casing of the first occurrence is preserved.
func NormalizeTags(tags []string) ([]string, error) {
	seen := make(map[string]struct{}, len(tags))
	normalized := make([]string, 0, len(tags))
	for _, raw := range tags {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || !tagPattern.MatchString(trimmed) {
			return nil, fmt.Errorf("invalid tag: %q", raw)
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	if len(normalized) > MaxTags {
		return nil, fmt.Errorf("tag limit exceeded: %d tags provided (max %d)", len(normalized), MaxTags)
	}
	return normalized, nil
}
