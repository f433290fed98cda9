// ABOUTME: Parsing of model completions into JSON objects, tolerating markdown
// ABOUTME: code fences and surrounding prose around the JSON payload.

package agents

import (
	"encoding/json"
	"strings"

	"github.com/2389-research/spyglass/llm"
)

// ParseJSONResponse extracts and decodes the JSON object in a model
// completion. Fenced ```json blocks are preferred; otherwise the text between
// the first '{' and the last '}' is tried. Failures are MalformedOutputError
// so the retry policy treats them as transient.
func ParseJSONResponse(content string) (map[string]any, error) {
	text := strings.TrimSpace(content)

	if inner, ok := extractFence(text, "```json"); ok {
		text = inner
	} else if inner, ok := extractFence(text, "```"); ok {
		text = inner
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}

	// Models sometimes wrap the object in prose. Take the outermost braces.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil {
			return out, nil
		}
	}

	return nil, &llm.MalformedOutputError{
		ClientError: llm.ClientError{Message: "completion is not a JSON object"},
	}
}

func extractFence(text, marker string) (string, bool) {
	start := strings.Index(text, marker)
	if start == -1 {
		return "", false
	}
	rest := text[start+len(marker):]
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// State value coercion. Decoded JSON carries float64 and []any; fallbacks and
// tests carry native Go values.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return fallback
}

func asStrings(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

func asMaps(v any) []map[string]any {
	items, _ := v.([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
