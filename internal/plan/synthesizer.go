// Package plan synthesizes a prioritized improvement plan from the two score
// breakdowns and the reasoning artifacts. The model proposes actions and
// deltas; this package clamps every number, truncates every string, and
// recomputes the totals; the model's arithmetic is never the source of
// truth.
package plan

import (
	"context"
	"log/slog"

	"github.com/aznory/listinglens/internal/clients"
	"github.com/aznory/listinglens/internal/models"
	"github.com/aznory/listinglens/internal/sentiment"
)

const (
	maxPriorityActions  = 3
	maxSecondaryActions = 5
	maxQuickWins        = 5

	maxCombinedScore = 200
	maxActionDelta   = 100

	// Character limits for model-produced text.
	actionChars = 80
	whyChars    = 150
	reasonChars = 200
	gapChars    = 100
	impactChars = 50
	hintChars   = 80
)

type ChatCompleter interface {
	Complete(ctx context.Context, system, user string, opts clients.CompletionOptions) (string, error)
}

// Context is the extra material handed to the synthesis call alongside the
// two score results.
type Context struct {
	ProductTitle    string
	Observations    map[string][]string
	NegativeReviews []string
}

type Synthesizer struct {
	chat ChatCompleter
}

func NewSynthesizer(chat ChatCompleter) *Synthesizer {
	return &Synthesizer{chat: chat}
}

// Generate issues one holistic synthesis call and post-processes the
// response into a bounds-checked plan. On any model failure it returns an
// empty plan anchored at the current total rather than an error.
func (s *Synthesizer) Generate(ctx context.Context, ruleResult models.RuleScoreResult, reasoningResult models.ReasoningScoreResult, pc Context) (models.ImprovementPlan, error) {
	currentTotal := ruleResult.Total + reasoningResult.Total

	raw, err := s.chat.Complete(ctx, synthesisSystemPrompt,
		synthesisPrompt(ruleResult, reasoningResult, pc, currentTotal),
		clients.CompletionOptions{Temperature: 0.7, MaxTokens: 3000, JSONObject: true})
	if err != nil {
		slog.Warn("[ImprovementPlan] Synthesis call failed, returning empty plan",
			slog.String("error", err.Error()))
		return emptyPlan(currentTotal), nil
	}

	parsed, ok := decodeLoose(raw)
	if !ok {
		slog.Warn("[ImprovementPlan] Synthesis response was not parsable JSON, returning empty plan")
		return emptyPlan(currentTotal), nil
	}

	plan := models.ImprovementPlan{
		CurrentTotal:     currentTotal,
		SectionReasons:   coerceSectionReasons(parsed),
		PriorityActions:  coerceActions(parsed, "priority_actions", models.PriorityP0, maxPriorityActions),
		SecondaryActions: coerceActions(parsed, "secondary_actions", models.PriorityP1, maxSecondaryActions),
		QuickWins:        coerceActions(parsed, "quick_wins", models.PriorityP2, maxQuickWins),
	}

	dropFabricatedReviewActions(&plan, reasoningResult, pc)
	recomputeTotals(&plan)
	return plan, nil
}

// dropFabricatedReviewActions enforces the guardrail: with no negative
// review signal and a full-marks review analysis, review-section actions
// are model confabulation and are removed.
func dropFabricatedReviewActions(plan *models.ImprovementPlan, reasoningResult models.ReasoningScoreResult, pc Context) {
	screens := sentiment.ScreenReviews(pc.NegativeReviews)
	if sentiment.HasNegativeSignal(screens) {
		return
	}
	analysis, ok := reasoningResult.Analyses[models.CategoryReviews]
	if ok && analysis.Total() < reviewsCategoryMax {
		return
	}

	filter := func(actions []models.ImprovementAction) []models.ImprovementAction {
		out := actions[:0]
		for _, a := range actions {
			if a.Section == models.CategoryReviews && (a.RuleScoreDelta > 0 || a.ReasoningScoreDelta > 0) {
				continue
			}
			out = append(out, a)
		}
		return out
	}
	plan.PriorityActions = filter(plan.PriorityActions)
	plan.SecondaryActions = filter(plan.SecondaryActions)
	plan.QuickWins = filter(plan.QuickWins)
}

const reviewsCategoryMax = 10

// recomputeTotals derives the projected total and gap from the clamped
// action deltas.
func recomputeTotals(plan *models.ImprovementPlan) {
	totalDelta := 0
	for _, action := range plan.AllActions() {
		totalDelta += action.RuleScoreDelta + action.ReasoningScoreDelta
	}
	after := plan.CurrentTotal + totalDelta
	if after > maxCombinedScore {
		after = maxCombinedScore
	}
	plan.EstimatedTotalAfter = after
	plan.ScoreGap = after - plan.CurrentTotal
}

func emptyPlan(currentTotal int) models.ImprovementPlan {
	return models.ImprovementPlan{
		CurrentTotal:        currentTotal,
		EstimatedTotalAfter: currentTotal,
		ScoreGap:            0,
		SectionReasons:      []models.SectionScoreReason{},
		PriorityActions:     []models.ImprovementAction{},
		SecondaryActions:    []models.ImprovementAction{},
		QuickWins:           []models.ImprovementAction{},
	}
}
