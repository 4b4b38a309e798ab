package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrInvalidJSON = errors.New("invalid JSON response from AI")

// UnmarshalJSON decodes a model reply that must contain a JSON object. Markdown fences
// are stripped; failing that, the outermost {...} span is tried.
func UnmarshalJSON(raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if strings.HasPrefix(cleaned, "{") {
		if err := json.Unmarshal([]byte(cleaned), out); err == nil {
			return nil
		}
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}

	return ErrInvalidJSON
}
