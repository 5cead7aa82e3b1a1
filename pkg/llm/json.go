package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes markdown code fences that chat models like to
// wrap JSON responses in.
func StripFences(response string) string {
	s := strings.TrimSpace(response)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractJSON isolates the outermost JSON object from a response that
// may carry prose or fences around it.
func ExtractJSON(response string) string {
	s := StripFences(response)

	startIdx := strings.Index(s, "{")
	endIdx := strings.LastIndex(s, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return s
	}

	return s[startIdx : endIdx+1]
}

// UnmarshalResponse parses model output into v, tolerating fences and
// surrounding prose. Parse failures wrap ErrMalformedOutput.
func UnmarshalResponse(response string, v interface{}) error {
	content := ExtractJSON(response)
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}
