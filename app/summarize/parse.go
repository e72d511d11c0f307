package summarize

import (
	"encoding/json"
	"log/slog"
	"strings"

	"feedpipe/app/model"
)

// ParseModelOutput turns the model's untrusted free-form output into a
// well-formed SummaryResult. It locates a JSON object inside the text,
// parses it, and clamps all bounds; any failure falls back to the
// deterministic truncation result. This function never fails.
func ParseModelOutput(raw, sourceText string, charLimit int) model.SummaryResult {
	if obj := extractJSONObject(raw); obj != "" {
		var result model.SummaryResult
		if err := json.Unmarshal([]byte(obj), &result); err == nil {
			if strings.TrimSpace(result.Summary) != "" {
				return result.Clamped(charLimit)
			}
			slog.Warn("Model output missing summary field, using fallback")
		} else {
			slog.Warn("Model output JSON unparseable, using fallback", "error", err)
		}
	} else {
		slog.Warn("No JSON object found in model output, using fallback")
	}

	return Fallback(sourceText, charLimit)
}

// Fallback builds the deterministic result used when the model is
// bypassed or its output cannot be parsed: the source text truncated to
// the configured limits, with no hashtags.
func Fallback(sourceText string, charLimit int) model.SummaryResult {
	return model.SummaryResult{
		Summary:  model.Truncate(sourceText, charLimit),
		Hashtags: []string{},
		Tweet:    model.Truncate(sourceText, model.TweetCharLimit),
	}
}

// extractJSONObject returns the first balanced {...} region of s, or ""
// when none exists. Brace counting skips string literals so embedded
// braces and escaped quotes do not unbalance the scan.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return ""
}
