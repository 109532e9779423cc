// Package assembler combines the rule and reasoning results into one run
// record and validates the cross-result invariants before anything is
// persisted or returned.
package assembler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/aznory/listinglens/internal/models"
)

// ErrInvariant marks an internally inconsistent result. A run that fails
// validation must not be stored or served.
var ErrInvariant = errors.New("analysis result violates an invariant")

const (
	ruleScoreMax      = 100
	reasoningScoreMax = 100
)

// CombinedResult is the full output of one analysis run.
type CombinedResult struct {
	RunID      string                       `json:"runId"`
	ASIN       string                       `json:"asin"`
	Score      models.RuleScoreResult       `json:"score"`
	Reasoning  *models.ReasoningScoreResult `json:"reasoning,omitempty"`
	Plan       *models.ImprovementPlan      `json:"improvementPlan,omitempty"`
	TotalScore int                          `json:"totalScore"`
	DryRun     bool                         `json:"dryRun,omitempty"`
	CreatedAt  time.Time                    `json:"createdAt"`
}

// generateRunID derives a stable ID from the ASIN and run timestamp.
func generateRunID(asin string, at time.Time) string {
	raw := fmt.Sprintf("%s:%d", asin, at.UnixNano())
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:])
}

// Assemble builds and validates a combined run. reasoning and plan may be
// nil when the caller's plan does not include those features.
func Assemble(asin string, score models.RuleScoreResult, reasoning *models.ReasoningScoreResult, plan *models.ImprovementPlan, dryRun bool, at time.Time) (CombinedResult, error) {
	result := CombinedResult{
		RunID:     generateRunID(asin, at),
		ASIN:      asin,
		Score:     score,
		Reasoning: reasoning,
		Plan:      plan,
		DryRun:    dryRun,
		CreatedAt: at.UTC(),
	}
	result.TotalScore = score.Total
	if reasoning != nil {
		result.TotalScore += reasoning.Total
	}
	if err := Validate(result); err != nil {
		return CombinedResult{}, err
	}
	return result, nil
}

// Validate checks every cross-field invariant of a combined run.
func Validate(r CombinedResult) error {
	if r.ASIN == "" {
		return fmt.Errorf("%w: empty asin", ErrInvariant)
	}
	if err := validateRuleScore(r.Score); err != nil {
		return err
	}
	expected := r.Score.Total
	if r.Reasoning != nil {
		if err := validateReasoningScore(*r.Reasoning); err != nil {
			return err
		}
		expected += r.Reasoning.Total
	}
	if r.TotalScore != expected {
		return fmt.Errorf("%w: total %d does not equal component sum %d", ErrInvariant, r.TotalScore, expected)
	}
	if r.Plan != nil {
		if err := validatePlan(*r.Plan, expected); err != nil {
			return err
		}
	}
	return nil
}

func validateRuleScore(s models.RuleScoreResult) error {
	if s.Total < 0 || s.Total > ruleScoreMax {
		return fmt.Errorf("%w: rule total %d out of range", ErrInvariant, s.Total)
	}
	sum := 0
	for key, cs := range s.Breakdown {
		if cs.Score < 0 || cs.Score > cs.Max {
			return fmt.Errorf("%w: rule category %s score %d exceeds max %d", ErrInvariant, key, cs.Score, cs.Max)
		}
		sum += cs.Score
	}
	if sum != s.Total {
		return fmt.Errorf("%w: rule breakdown sums to %d, total is %d", ErrInvariant, sum, s.Total)
	}
	return nil
}

func validateReasoningScore(s models.ReasoningScoreResult) error {
	if s.Total < 0 || s.Total > reasoningScoreMax {
		return fmt.Errorf("%w: reasoning total %d out of range", ErrInvariant, s.Total)
	}
	b := s.Breakdown
	sum := b.MainImage + b.Title + b.SubImages + b.Reviews + b.RichBrand
	if sum != s.Total {
		return fmt.Errorf("%w: reasoning breakdown sums to %d, total is %d", ErrInvariant, sum, s.Total)
	}
	return nil
}

func validatePlan(p models.ImprovementPlan, currentTotal int) error {
	if p.CurrentTotal != currentTotal {
		return fmt.Errorf("%w: plan current total %d does not match run total %d", ErrInvariant, p.CurrentTotal, currentTotal)
	}
	if p.EstimatedTotalAfter < p.CurrentTotal || p.EstimatedTotalAfter > 2*ruleScoreMax {
		return fmt.Errorf("%w: plan projected total %d out of range", ErrInvariant, p.EstimatedTotalAfter)
	}
	if p.ScoreGap != p.EstimatedTotalAfter-p.CurrentTotal {
		return fmt.Errorf("%w: plan score gap %d inconsistent with totals", ErrInvariant, p.ScoreGap)
	}
	for _, action := range p.AllActions() {
		if action.RuleScoreDelta < 0 || action.ReasoningScoreDelta < 0 {
			return fmt.Errorf("%w: negative delta on action %q", ErrInvariant, action.Action)
		}
	}
	return nil
}
