package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aznory/listinglens/internal/models"
)

const synthesisSystemPrompt = `You are a top consultant for product listing page optimization.
From the scoring results below, build a concrete, prioritized improvement plan
the seller can execute. Every action must be specific enough to start today.
Abstract advice ("improve the images") is forbidden.`

func synthesisPrompt(ruleResult models.RuleScoreResult, reasoningResult models.ReasoningScoreResult, pc Context, currentTotal int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Product: %q\n\n", pc.ProductTitle)
	fmt.Fprintf(&sb, "Current combined score: %d / 200\n\n", currentTotal)

	fmt.Fprintf(&sb, "Rule score (deterministic checks): %d / 100\n", ruleResult.Total)
	for _, key := range orderedCategories {
		if cs, ok := ruleResult.Breakdown[key]; ok {
			fmt.Fprintf(&sb, "- %s: %d / %d\n", key, cs.Score, cs.Max)
		}
	}
	if len(ruleResult.MissingSignals) > 0 {
		fmt.Fprintf(&sb, "- missing signals: %s\n", strings.Join(ruleResult.MissingSignals, ", "))
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Reasoning score (model evaluation): %d / 100\n", reasoningResult.Total)
	b := reasoningResult.Breakdown
	fmt.Fprintf(&sb, "- mainImage: %d / 20\n- title: %d / 10\n- subImages: %d / 30\n- reviews: %d / 10\n- richBrand: %d / 30\n\n",
		b.MainImage, b.Title, b.SubImages, b.Reviews, b.RichBrand)

	for _, key := range orderedCategories {
		analysis, ok := reasoningResult.Analyses[key]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "Analysis for %s:\n", key)
		if analysis.Fallback {
			sb.WriteString("- degraded result (default values); do not base actions on its subscores\n")
		}
		if analysis.Why != "" {
			fmt.Fprintf(&sb, "- why: %s\n", analysis.Why)
		}
		for _, dim := range sortedKeys(analysis.Details) {
			detail := analysis.Details[dim]
			if detail.Improvement != "" {
				fmt.Fprintf(&sb, "- %s suggestion: %s\n", dim, detail.Improvement)
			}
		}
		sb.WriteString("\n")
	}

	for _, key := range sortedKeys(reasoningResult.Observations) {
		obs := reasoningResult.Observations[key]
		if len(obs) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "Visual observations (%s):\n", key)
		for _, o := range obs {
			fmt.Fprintf(&sb, "- %s\n", o)
		}
		sb.WriteString("\n")
	}

	if len(pc.NegativeReviews) > 0 {
		sb.WriteString("Negative review candidates:\n")
		for i, r := range pc.NegativeReviews {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No negative reviews were detected. Do NOT invent review problems or review-related actions.\n\n")
	}

	sb.WriteString(`Build the plan:
- priority_actions: at most 3 P0 actions with the largest score impact
- secondary_actions: at most 5 P1 actions
- quick_wins: at most 5 P2 actions a seller can finish within a day
- section_reasons: one entry per scored section explaining the current score and the gap to full marks

Per action, estimate realistic score deltas. Do not inflate: an action can only
recover points the section actually lost.

Output format (JSON, strict):
{
  "section_reasons": [
    {"section": "title", "score": 0, "max": 0, "reason": "...", "gap_analysis": "..."}
  ],
  "priority_actions": [
    {
      "section": "mainImage",
      "category": "rule" | "reasoning" | "both",
      "action": "concrete step (max 80 chars)",
      "estimated_rule_score_delta": 0,
      "estimated_reasoning_score_delta": 0,
      "cvr_impact": "short estimate (max 50 chars)",
      "ctr_impact": "short estimate (max 50 chars)",
      "revenue_impact": "short estimate (max 50 chars)",
      "why": "why this matters now (max 150 chars)",
      "implementation_hint": "how to start (max 80 chars)"
    }
  ],
  "secondary_actions": [ same shape ],
  "quick_wins": [ same shape ]
}`)
	return sb.String()
}

var orderedCategories = []string{
	models.CategoryMainImage,
	models.CategoryTitle,
	models.CategorySubImages,
	models.CategoryDescription,
	models.CategoryReviews,
	models.CategoryRichBrand,
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
