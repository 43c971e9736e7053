package services

import (
	"encoding/json"
	"strings"
)

const previewLimit = 200

// AnalysisJSON is model output that parsed as a JSON object. Raw is kept
// verbatim for persistence; Fields is the decoded view.
type AnalysisJSON struct {
	Raw    string
	Fields map[string]any
}

// Sanitize strips an optional markdown code fence from raw and checks that
// what remains is a JSON object. Expected keys are not enforced.
func Sanitize(raw string) (*AnalysisJSON, error) {
	text := stripCodeFence(raw)

	var fields map[string]any
	err := json.Unmarshal([]byte(text), &fields)
	if err != nil || fields == nil {
		return nil, &PipelineError{
			Kind:    KindNotJSON,
			Stage:   StageModelInvoked,
			Message: "model output is not a JSON object",
			Preview: preview(text, previewLimit),
			Err:     err,
		}
	}

	return &AnalysisJSON{Raw: text, Fields: fields}, nil
}

// stripCodeFence removes a leading ``` or ```<lang> marker and a trailing ```.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)

	if rest, ok := strings.CutPrefix(s, "```"); ok {
		end := strings.IndexFunc(rest, func(r rune) bool { return !isFenceTagRune(r) })
		if end < 0 {
			end = len(rest)
		}
		s = strings.TrimSpace(rest[end:])
	}

	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

func isFenceTagRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '+'
}

func preview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
