package usage

import (
	"context"
	"sync"
	"time"

	"github.com/aznory/listinglens/internal/models"
)

// MemoryStore is an in-process EventStore for tests and local development.
type MemoryStore struct {
	mu     sync.Mutex
	events []models.UsageEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, accountID string, feature models.Feature, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, models.UsageEvent{AccountID: accountID, Feature: feature, CreatedAt: at})
	return nil
}

func (s *MemoryStore) CountSince(ctx context.Context, accountID string, feature models.Feature, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.events {
		if e.AccountID == accountID && e.Feature == feature && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// StaticPlanResolver maps account ids to fixed plans; unknown accounts fall
// back to the default plan.
type StaticPlanResolver struct {
	Plans   map[string]models.PlanKey
	Default models.PlanKey
}

func (r *StaticPlanResolver) PlanFor(ctx context.Context, accountID string) (models.PlanKey, error) {
	if plan, ok := r.Plans[accountID]; ok {
		return plan, nil
	}
	if r.Default != "" {
		return r.Default, nil
	}
	return models.PlanFree, nil
}
