package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aznory/listinglens/internal/models"
)

// PostgresStore persists usage events append-only. Historical events are
// never updated or deleted; month windows are pure query-time math.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the usage_events table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS usage_events (
			id         BIGSERIAL PRIMARY KEY,
			account_id TEXT        NOT NULL,
			feature    TEXT        NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS usage_events_account_feature_created_idx
			ON usage_events (account_id, feature, created_at);
	`)
	if err != nil {
		return fmt.Errorf("[UsageStore] ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, accountID string, feature models.Feature, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_events (account_id, feature, created_at) VALUES ($1, $2, $3)`,
		accountID, string(feature), at)
	if err != nil {
		return fmt.Errorf("[UsageStore] append event: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountSince(ctx context.Context, accountID string, feature models.Feature, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM usage_events WHERE account_id = $1 AND feature = $2 AND created_at >= $3`,
		accountID, string(feature), since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("[UsageStore] count events: %w", err)
	}
	return count, nil
}
