package reasoning

import (
	"encoding/json"
	"strings"
)

// Model responses are untrusted free text. We extract the first JSON object
// speculatively, decode it into an untyped map, then coerce every numeric
// field into its declared bounds. The model is trusted for judgment only,
// never for range discipline or arithmetic.

// extractJSONObject returns the outermost {...} span of the text, which
// survives models that wrap JSON in prose or code fences.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

func decodeLoose(raw string) (map[string]any, bool) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return nil, false
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// numberField reads a numeric field from a loosely-decoded object,
// tolerating float, integral-string, and absent values.
func numberField(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int(f), true
	case string:
		var f float64
		if err := json.Unmarshal([]byte(n), &f); err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func objectField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

func stringListField(m map[string]any, key string) []string {
	list, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
