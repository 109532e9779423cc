package assembler

import (
	"errors"
	"testing"
	"time"

	"github.com/aznory/listinglens/internal/models"
)

func validRuleScore() models.RuleScoreResult {
	return models.RuleScoreResult{
		Total: 45,
		Breakdown: models.ScoreBreakdown{
			models.CategoryTitle:     {Score: 10, Max: 10},
			models.CategoryMainImage: {Score: 10, Max: 10},
			models.CategoryReviews:   {Score: 25, Max: 25},
		},
	}
}

func validReasoning() *models.ReasoningScoreResult {
	return &models.ReasoningScoreResult{
		Total:     38,
		Breakdown: models.ReasoningBreakdown{MainImage: 15, Title: 8, SubImages: 10, Reviews: 5, RichBrand: 0},
	}
}

var runTime = time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC)

func TestAssembleCombinesTotals(t *testing.T) {
	result, err := Assemble("B000TEST01", validRuleScore(), validReasoning(), nil, false, runTime)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if result.TotalScore != 83 {
		t.Fatalf("total %d, want 83", result.TotalScore)
	}
	if result.RunID == "" {
		t.Fatal("run id must be set")
	}
	if result.ASIN != "B000TEST01" {
		t.Fatalf("asin lost: %s", result.ASIN)
	}
	if !result.CreatedAt.Equal(runTime) {
		t.Fatalf("created at %v, want %v", result.CreatedAt, runTime)
	}
}

func TestAssembleRuleOnly(t *testing.T) {
	result, err := Assemble("B000TEST01", validRuleScore(), nil, nil, true, runTime)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if result.TotalScore != 45 {
		t.Fatalf("rule-only total %d, want 45", result.TotalScore)
	}
	if !result.DryRun {
		t.Fatal("dry run flag lost")
	}
}

func TestRunIDsDifferAcrossRuns(t *testing.T) {
	first, err := Assemble("B000TEST01", validRuleScore(), nil, nil, false, runTime)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	second, err := Assemble("B000TEST01", validRuleScore(), nil, nil, false, runTime.Add(time.Second))
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatal("distinct runs must get distinct ids")
	}
}

func TestValidateRejectsBreakdownMismatch(t *testing.T) {
	score := validRuleScore()
	score.Total = 50 // breakdown sums to 45

	_, err := Assemble("B000TEST01", score, nil, nil, false, runTime)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}

func TestValidateRejectsCategoryOverMax(t *testing.T) {
	score := validRuleScore()
	score.Breakdown[models.CategoryTitle] = models.CategoryScore{Score: 11, Max: 10}
	score.Total = 46

	_, err := Assemble("B000TEST01", score, nil, nil, false, runTime)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}

func TestValidateRejectsReasoningMismatch(t *testing.T) {
	reasoning := validReasoning()
	reasoning.Total = 40 // breakdown sums to 38

	_, err := Assemble("B000TEST01", validRuleScore(), reasoning, nil, false, runTime)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}

func TestValidateRejectsEmptyASIN(t *testing.T) {
	_, err := Assemble("", validRuleScore(), nil, nil, false, runTime)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}

func TestValidatePlanConsistency(t *testing.T) {
	plan := &models.ImprovementPlan{
		CurrentTotal:        83,
		EstimatedTotalAfter: 95,
		ScoreGap:            12,
		PriorityActions: []models.ImprovementAction{
			{Action: "fix", RuleScoreDelta: 6, ReasoningScoreDelta: 6},
		},
	}
	if _, err := Assemble("B000TEST01", validRuleScore(), validReasoning(), plan, false, runTime); err != nil {
		t.Fatalf("consistent plan rejected: %v", err)
	}

	plan.ScoreGap = 99
	if _, err := Assemble("B000TEST01", validRuleScore(), validReasoning(), plan, false, runTime); !errors.Is(err, ErrInvariant) {
		t.Fatal("inconsistent score gap must be rejected")
	}

	plan.ScoreGap = 12
	plan.CurrentTotal = 50
	if _, err := Assemble("B000TEST01", validRuleScore(), validReasoning(), plan, false, runTime); !errors.Is(err, ErrInvariant) {
		t.Fatal("plan anchored at the wrong total must be rejected")
	}
}

func TestValidatePlanRejectsNegativeDeltas(t *testing.T) {
	plan := &models.ImprovementPlan{
		CurrentTotal:        83,
		EstimatedTotalAfter: 83,
		ScoreGap:            0,
		QuickWins: []models.ImprovementAction{
			{Action: "odd", RuleScoreDelta: -1},
		},
	}
	_, err := Assemble("B000TEST01", validRuleScore(), validReasoning(), plan, false, runTime)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}
