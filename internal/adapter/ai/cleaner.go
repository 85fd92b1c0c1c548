// Package ai normalizes free-text model output into the strict shapes the
// interview pipeline persists.
package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// CleanResponse strips markdown fences and surrounding prose so that the
// strict decoders have a fighting chance with chatty models.
func CleanResponse(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSONObject returns the first balanced {...} block in s, or "" when
// none exists.
func ExtractJSONObject(s string) string {
	return extractBalanced(s, '{', '}')
}

// ExtractJSONArray returns the first balanced [...] block in s, or "" when
// none exists.
func ExtractJSONArray(s string) string {
	return extractBalanced(s, '[', ']')
}

func extractBalanced(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// FixCommonJSONIssues repairs the malformations free-tier models emit most
// often: trailing commas and stray prose before the payload.
func FixCommonJSONIssues(s string) string {
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// decodeStrict unmarshals into v after cleaning, object/array extraction,
// and a repair pass, in that order of preference.
func decodeStrict(raw string, v any, wantArray bool) bool {
	cleaned := CleanResponse(raw)
	candidates := []string{cleaned}
	if wantArray {
		if a := ExtractJSONArray(cleaned); a != "" {
			candidates = append(candidates, a)
		}
	}
	if o := ExtractJSONObject(cleaned); o != "" {
		candidates = append(candidates, o)
	}
	for _, c := range candidates {
		if json.Unmarshal([]byte(c), v) == nil {
			return true
		}
		if json.Unmarshal([]byte(FixCommonJSONIssues(c)), v) == nil {
			return true
		}
	}
	return false
}
