// Package llmjson decodes structured JSON out of language-model replies.
//
// Models frequently wrap JSON in markdown code fences or pad it with prose
// despite instructions not to. Strip removes the fences; Unmarshal strips and
// then decodes into the target type.
package llmjson

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Strip removes optional markdown code fences (```json ... ```) that some
// models prepend and append to JSON output.
func Strip(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

// Unmarshal strips code fences from content and decodes the remainder into v.
func Unmarshal(content string, v any) error {
	cleaned := Strip(content)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("llmjson: decode: %w", err)
	}
	return nil
}
