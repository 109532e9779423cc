package models

// CategoryScore is one row of a rule-score breakdown.
type CategoryScore struct {
	Score int `json:"score"`
	Max   int `json:"max"`
}

type ScoreBreakdown map[string]CategoryScore

// RuleScoreResult is the deterministic 0-100 score. Write-once: engines
// return a fresh value per request and never mutate it afterwards.
type RuleScoreResult struct {
	Total          int            `json:"scoreTotal"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	MissingSignals []string       `json:"missingSignals"`
	Notes          []string       `json:"notes,omitempty"`
}

// Rule-score category keys.
const (
	CategoryTitle       = "title"
	CategoryMainImage   = "mainImage"
	CategorySubImages   = "subImages"
	CategoryDescription = "description"
	CategoryReviews     = "reviews"
	CategoryRichBrand   = "richBrand"
)
