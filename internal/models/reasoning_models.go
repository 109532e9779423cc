package models

// DimensionDetail carries the model's per-dimension reason and concrete
// improvement suggestion, for the sectioned categories that emit them.
type DimensionDetail struct {
	Reason      string `json:"reason,omitempty"`
	Improvement string `json:"improvement,omitempty"`
}

// CategoryAnalysis is one category's clamped subscores plus rationale.
// Fallback marks a degraded result (scoring call failed or was unparsable);
// consumers must not treat a fallback analysis as ground truth.
type CategoryAnalysis struct {
	Subscores map[string]int             `json:"subscores"`
	Why       string                     `json:"why,omitempty"`
	Details   map[string]DimensionDetail `json:"details,omitempty"`
	Fallback  bool                       `json:"fallback,omitempty"`
}

// Total sums the clamped subscores.
func (a CategoryAnalysis) Total() int {
	sum := 0
	for _, v := range a.Subscores {
		sum += v
	}
	return sum
}

// ReasoningBreakdown holds the five fixed category totals. The maxima
// (20/10/30/10/30) are implementation invariants, not configuration.
type ReasoningBreakdown struct {
	MainImage int `json:"mainImage"`
	Title     int `json:"title"`
	SubImages int `json:"subImages"`
	Reviews   int `json:"reviews"`
	RichBrand int `json:"richBrand"`
}

type ImprovementSummary struct {
	MostCriticalIssue string   `json:"mostCriticalIssue,omitempty"`
	QuickWins         []string `json:"quickWins,omitempty"`
	HighImpactActions []string `json:"highImpactActions,omitempty"`
}

// ReasoningScoreResult is the model-derived 0-100 score.
type ReasoningScoreResult struct {
	Total        int                         `json:"total"`
	Breakdown    ReasoningBreakdown          `json:"breakdown"`
	Analyses     map[string]CategoryAnalysis `json:"analyses"`
	Observations map[string][]string         `json:"observations,omitempty"`
	Summary      *ImprovementSummary         `json:"improvementSummary,omitempty"`
}
