package plan

import (
	"encoding/json"
	"strings"

	"github.com/aznory/listinglens/internal/models"
)

// Coercion mirrors the reasoning engine's stance toward model output: the
// structure is taken on faith, then every field is forced into bounds. A
// response that exceeds a length limit is truncated, not rejected.

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

// truncate bounds a string by rune count so multibyte Japanese text is cut
// on character boundaries.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func clampDelta(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxActionDelta {
		return maxActionDelta
	}
	return v
}

func intField(m map[string]any, key string) int {
	switch n := m[key].(type) {
	case float64:
		return int(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return int(f)
	case string:
		var f float64
		if err := json.Unmarshal([]byte(n), &f); err != nil {
			return 0
		}
		return int(f)
	default:
		return 0
	}
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func objectListField(m map[string]any, key string) []map[string]any {
	list, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func coerceActions(parsed map[string]any, key string, priority models.ActionPriority, limit int) []models.ImprovementAction {
	raw := objectListField(parsed, key)
	if len(raw) > limit {
		raw = raw[:limit]
	}
	actions := make([]models.ImprovementAction, 0, len(raw))
	for _, obj := range raw {
		action := models.ImprovementAction{
			Priority:            priority,
			Category:            normalizeActionCategory(stringField(obj, "category")),
			Section:             stringField(obj, "section"),
			Action:              truncate(stringField(obj, "action"), actionChars),
			RuleScoreDelta:      clampDelta(intField(obj, "estimated_rule_score_delta")),
			ReasoningScoreDelta: clampDelta(intField(obj, "estimated_reasoning_score_delta")),
			CVRImpact:           truncate(stringField(obj, "cvr_impact"), impactChars),
			CTRImpact:           truncate(stringField(obj, "ctr_impact"), impactChars),
			RevenueImpact:       truncate(stringField(obj, "revenue_impact"), impactChars),
			Why:                 truncate(stringField(obj, "why"), whyChars),
			ImplementationHint:  truncate(stringField(obj, "implementation_hint"), hintChars),
		}
		if action.Action == "" {
			continue
		}
		actions = append(actions, action)
	}
	return actions
}

func normalizeActionCategory(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rule":
		return "rule"
	case "reasoning":
		return "reasoning"
	default:
		return "both"
	}
}

func coerceSectionReasons(parsed map[string]any) []models.SectionScoreReason {
	raw := objectListField(parsed, "section_reasons")
	reasons := make([]models.SectionScoreReason, 0, len(raw))
	for _, obj := range raw {
		section := stringField(obj, "section")
		if section == "" {
			continue
		}
		max := intField(obj, "max")
		score := intField(obj, "score")
		if max < 0 {
			max = 0
		}
		if score < 0 {
			score = 0
		}
		if max > 0 && score > max {
			score = max
		}
		reasons = append(reasons, models.SectionScoreReason{
			Section:     section,
			Score:       score,
			Max:         max,
			Reason:      truncate(stringField(obj, "reason"), reasonChars),
			GapAnalysis: truncate(stringField(obj, "gap_analysis"), gapChars),
		})
	}
	return reasons
}
