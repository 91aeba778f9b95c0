package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CleanJSON strips Markdown code fences and surrounding prose from a model reply,
// keeping the outermost JSON object.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return strings.Trim(s, "`")
		}
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

// DecodeJSON cleans a model reply and unmarshals it into v.
func DecodeJSON(raw string, v any) error {
	clean := CleanJSON(raw)
	if clean == "" {
		return fmt.Errorf("empty model response")
	}
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return fmt.Errorf("failed to parse model JSON: %w", err)
	}
	return nil
}
