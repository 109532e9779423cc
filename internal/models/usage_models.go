package models

import "time"

type PlanKey string

const (
	PlanFree   PlanKey = "FREE"
	PlanSimple PlanKey = "SIMPLE"
	PlanPro    PlanKey = "PRO"
)

type Feature string

const (
	FeatureScore     Feature = "score"
	FeatureReasoning Feature = "reasoning"
	FeatureImprove   Feature = "improve"
)

// FeatureLimit is a monthly quota. Nil means unlimited; zero means the
// feature is unavailable on the tier regardless of usage.
type FeatureLimit *int

type Entitlements struct {
	Plan   PlanKey
	Limits map[Feature]FeatureLimit
}

// GuardResult is the non-exceptional outcome of a usage check. A denial
// always carries a machine-readable code and, for limit denials on
// otherwise-available features, the UTC reset time.
type GuardResult struct {
	OK      bool       `json:"ok"`
	Plan    PlanKey    `json:"plan"`
	Reason  string     `json:"reason,omitempty"` // "limit"
	Code    string     `json:"code,omitempty"`   // "LIMIT_EXCEEDED"
	Feature Feature    `json:"feature,omitempty"`
	Message string     `json:"message,omitempty"`
	ResetAt *time.Time `json:"resetAt,omitempty"`
}

type UsageEvent struct {
	AccountID string    `json:"accountId"`
	Feature   Feature   `json:"feature"`
	CreatedAt time.Time `json:"createdAt"`
}

type FeatureUsage struct {
	Limit     *int `json:"limit,omitempty"` // nil = unlimited
	Used      int  `json:"used"`
	Remaining *int `json:"remaining,omitempty"` // nil = unlimited
}

type UsageStatus struct {
	Plan     PlanKey                  `json:"plan"`
	Features map[Feature]FeatureUsage `json:"features"`
	ResetsAt time.Time                `json:"resetsAt"`
}
