package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thumbgen/internal/domain"
)

// UsageRepositoryPG implements domain.UsageRepository backed by PostgreSQL.
// Counters accumulate per owner per UTC day.
type UsageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUsageRepository creates a new UsageRepositoryPG.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepositoryPG {
	return &UsageRepositoryPG{pool: pool}
}

var _ domain.UsageRepository = (*UsageRepositoryPG)(nil)

// Increment bumps the owner's daily counters by the given deltas.
func (r *UsageRepositoryPG) Increment(ctx context.Context, ownerID, day string, generated, failed, imagesStored int) error {
	query := `
INSERT INTO daily_usage (owner_id, day, generated, failed, images_stored)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (owner_id, day) DO UPDATE
SET generated = daily_usage.generated + EXCLUDED.generated,
    failed = daily_usage.failed + EXCLUDED.failed,
    images_stored = daily_usage.images_stored + EXCLUDED.images_stored,
    updated_at = NOW();
`

	_, err := r.pool.Exec(ctx, query, ownerID, day, generated, failed, imagesStored)
	return err
}

// Summary returns the owner's counters for one day. A day with no activity
// comes back zeroed rather than as an error.
func (r *UsageRepositoryPG) Summary(ctx context.Context, ownerID, day string) (*domain.DailyUsage, error) {
	row := r.pool.QueryRow(ctx, `
SELECT day, generated, failed, images_stored
FROM daily_usage
WHERE owner_id = $1 AND day = $2;
`, ownerID, day)

	var usage domain.DailyUsage
	if err := row.Scan(&usage.Day, &usage.Generated, &usage.Failed, &usage.ImagesStored); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.DailyUsage{Day: day}, nil
		}
		return nil, err
	}
	return &usage, nil
}
