package llm

import (
	"encoding/json"
	"unicode/utf8"

	"opscord.app/pipeline/internal/model"
)

// ExtractJSONObject returns the first balanced {...} block in s, tolerating
// surrounding prose and markdown fences. Braces inside JSON strings are
// ignored. The second return is false when no complete object exists.
func ExtractJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// ParseSummary decodes a model response into a PRSummary, defaulting any
// missing or malformed field rather than failing: empty lists, "medium"
// complexity. A completely unparsable response yields an empty summary the
// caller can detect.
func ParseSummary(content string) *model.PRSummary {
	summary := &model.PRSummary{}

	if block, ok := ExtractJSONObject(content); ok {
		// Best effort decode: unknown fields and type mismatches on
		// one field should not discard the rest.
		_ = json.Unmarshal([]byte(block), summary)
	}

	if summary.KeyChanges == nil {
		summary.KeyChanges = []string{}
	}
	if summary.Risks == nil {
		summary.Risks = []string{}
	}
	if summary.Recommendations == nil {
		summary.Recommendations = []string{}
	}
	switch summary.Complexity {
	case model.ComplexityLow, model.ComplexityMedium, model.ComplexityHigh:
	default:
		summary.Complexity = model.ComplexityMedium
	}

	return summary
}

// ParseTriage decodes a categorization response, falling back to the
// lowest-stakes triage when the response is unusable.
func ParseTriage(content string) *model.IssueTriage {
	triage := &model.IssueTriage{}

	if block, ok := ExtractJSONObject(content); ok {
		_ = json.Unmarshal([]byte(block), triage)
	}

	switch triage.Category {
	case "bug", "enhancement", "documentation", "question", "infrastructure":
	default:
		triage.Category = "question"
	}
	switch triage.Severity {
	case model.SeverityLow, model.SeverityMedium, model.SeverityHigh:
	default:
		triage.Severity = model.SeverityLow
	}

	return triage
}

// Truncate shortens s to at most maxLen bytes, backing up so it never
// splits a multi-byte rune.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
