package models

type ActionPriority string

const (
	PriorityP0 ActionPriority = "P0"
	PriorityP1 ActionPriority = "P1"
	PriorityP2 ActionPriority = "P2"
)

// ImprovementAction is one prioritized remediation step. Deltas are the
// model's estimate, clamped by the synthesizer; the plan totals are always
// recomputed from them, never taken from the model.
type ImprovementAction struct {
	Priority            ActionPriority `json:"priority"`
	Category            string         `json:"category"` // "rule" | "reasoning" | "both"
	Section             string         `json:"section"`
	Action              string         `json:"action"`
	RuleScoreDelta      int            `json:"estimatedRuleScoreDelta"`
	ReasoningScoreDelta int            `json:"estimatedReasoningScoreDelta"`
	CVRImpact           string         `json:"cvrImpact,omitempty"`
	CTRImpact           string         `json:"ctrImpact,omitempty"`
	RevenueImpact       string         `json:"revenueImpact,omitempty"`
	Why                 string         `json:"why,omitempty"`
	ImplementationHint  string         `json:"implementationHint,omitempty"`
}

type SectionScoreReason struct {
	Section     string `json:"section"`
	Score       int    `json:"score"`
	Max         int    `json:"max"`
	Reason      string `json:"reason"`
	GapAnalysis string `json:"gapAnalysis"`
}

type ImprovementPlan struct {
	CurrentTotal        int                  `json:"currentTotal"`
	EstimatedTotalAfter int                  `json:"estimatedTotalAfter"`
	ScoreGap            int                  `json:"scoreGap"`
	SectionReasons      []SectionScoreReason `json:"sectionReasons"`
	PriorityActions     []ImprovementAction  `json:"priorityActions"`
	SecondaryActions    []ImprovementAction  `json:"secondaryActions"`
	QuickWins           []ImprovementAction  `json:"quickWins"`
}

// AllActions returns every action across the three priority buckets.
func (p ImprovementPlan) AllActions() []ImprovementAction {
	out := make([]ImprovementAction, 0, len(p.PriorityActions)+len(p.SecondaryActions)+len(p.QuickWins))
	out = append(out, p.PriorityActions...)
	out = append(out, p.SecondaryActions...)
	out = append(out, p.QuickWins...)
	return out
}
