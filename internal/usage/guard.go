// Package usage enforces per-account monthly quotas around billable engine
// invocations. Usage is an append-only event stream counted against UTC
// calendar-month windows; events are never mutated and a rolled-over period
// is superseded by the window math, not deleted.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/aznory/listinglens/internal/models"
)

// EventStore is the only shared mutable resource in the pipeline: monotonic
// append plus range-count by time window.
type EventStore interface {
	Append(ctx context.Context, accountID string, feature models.Feature, at time.Time) error
	CountSince(ctx context.Context, accountID string, feature models.Feature, since time.Time) (int, error)
}

// PlanResolver hands back the account's plan tier; billing state is an
// external collaborator behind this interface.
type PlanResolver interface {
	PlanFor(ctx context.Context, accountID string) (models.PlanKey, error)
}

// DeniedError carries a denial out of call sites that need an error value;
// the GuardResult inside is the real outcome.
type DeniedError struct {
	Result models.GuardResult
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("entitlement denied: %s (%s)", e.Result.Message, e.Result.Code)
}

// Guard checks and records quota consumption. Check and Record are separate
// calls and are NOT serialized across concurrent requests from the same
// account: two requests can both pass Check before either Records, spending
// one past the limit. Closing that race needs a transactional
// increment-and-compare and is a product decision, not a bug fix.
type Guard struct {
	store EventStore
	plans PlanResolver
	now   func() time.Time
}

func NewGuard(store EventStore, plans PlanResolver) *Guard {
	return &Guard{store: store, plans: plans, now: time.Now}
}

// Check resolves the account's plan and decides Allowed/Denied for the
// feature. Denial is a first-class outcome, not an error.
func (g *Guard) Check(ctx context.Context, accountID string, feature models.Feature) (models.GuardResult, error) {
	now := g.now().UTC()

	plan, err := g.plans.PlanFor(ctx, accountID)
	if err != nil {
		return models.GuardResult{}, fmt.Errorf("[UsageGuard] resolve plan for %s: %w", accountID, err)
	}

	ent := EntitlementsFor(plan)
	max, defined := ent.Limits[feature]
	if !defined || max == nil {
		// Unlimited.
		return models.GuardResult{OK: true, Plan: plan}, nil
	}

	if *max == 0 {
		// Feature unavailable on this tier, regardless of usage.
		return models.GuardResult{
			OK:      false,
			Plan:    plan,
			Reason:  "limit",
			Code:    "LIMIT_EXCEEDED",
			Feature: feature,
			Message: fmt.Sprintf("the %s plan does not include %s", plan, feature),
		}, nil
	}

	monthStart := startOfUTCMonth(now)
	count, err := g.store.CountSince(ctx, accountID, feature, monthStart)
	if err != nil {
		return models.GuardResult{}, fmt.Errorf("[UsageGuard] count usage for %s/%s: %w", accountID, feature, err)
	}

	if count >= *max {
		resetAt := startOfNextUTCMonth(now)
		return models.GuardResult{
			OK:      false,
			Plan:    plan,
			Reason:  "limit",
			Code:    "LIMIT_EXCEEDED",
			Feature: feature,
			Message: fmt.Sprintf("the %s plan allows %s %d times per month", plan, feature, *max),
			ResetAt: &resetAt,
		}, nil
	}

	return models.GuardResult{OK: true, Plan: plan}, nil
}

// Record appends one usage event. Callers issue it only after the gated
// operation succeeded; dry runs skip it entirely.
func (g *Guard) Record(ctx context.Context, accountID string, feature models.Feature) error {
	if err := g.store.Append(ctx, accountID, feature, g.now().UTC()); err != nil {
		return fmt.Errorf("[UsageGuard] record usage for %s/%s: %w", accountID, feature, err)
	}
	return nil
}

// Status reports limits, usage, and remaining quota for every feature in the
// current UTC month.
func (g *Guard) Status(ctx context.Context, accountID string) (models.UsageStatus, error) {
	now := g.now().UTC()

	plan, err := g.plans.PlanFor(ctx, accountID)
	if err != nil {
		return models.UsageStatus{}, fmt.Errorf("[UsageGuard] resolve plan for %s: %w", accountID, err)
	}

	ent := EntitlementsFor(plan)
	monthStart := startOfUTCMonth(now)

	status := models.UsageStatus{
		Plan:     plan,
		Features: make(map[models.Feature]models.FeatureUsage, len(ent.Limits)),
		ResetsAt: startOfNextUTCMonth(now),
	}

	for feature, max := range ent.Limits {
		used, err := g.store.CountSince(ctx, accountID, feature, monthStart)
		if err != nil {
			return models.UsageStatus{}, fmt.Errorf("[UsageGuard] count usage for %s/%s: %w", accountID, feature, err)
		}

		fu := models.FeatureUsage{Used: used}
		if max != nil {
			limitCopy := *max
			fu.Limit = &limitCopy
			remaining := limitCopy - used
			if remaining < 0 {
				remaining = 0
			}
			fu.Remaining = &remaining
		}
		status.Features[feature] = fu
	}
	return status, nil
}

func startOfUTCMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func startOfNextUTCMonth(t time.Time) time.Time {
	return startOfUTCMonth(t).AddDate(0, 1, 0)
}
