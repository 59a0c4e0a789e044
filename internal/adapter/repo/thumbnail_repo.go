package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thumbgen/internal/domain"
)

// ThumbnailRepositoryPG implements domain.ThumbnailRepository backed by
// PostgreSQL.
type ThumbnailRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewThumbnailRepository creates a new ThumbnailRepositoryPG.
func NewThumbnailRepository(pool *pgxpool.Pool) *ThumbnailRepositoryPG {
	return &ThumbnailRepositoryPG{pool: pool}
}

var _ domain.ThumbnailRepository = (*ThumbnailRepositoryPG)(nil)

const thumbnailColumns = `id, owner_id, prompt, enhanced_prompt, image_location, source_location, provider, mime, width, height, created_at`

// Insert persists one generated thumbnail record.
func (r *ThumbnailRepositoryPG) Insert(ctx context.Context, t *domain.Thumbnail) error {
	query := `
INSERT INTO thumbnails (id, owner_id, prompt, enhanced_prompt, image_location, source_location, provider, mime, width, height)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`

	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.OwnerID,
		t.Prompt,
		t.EnhancedPrompt,
		t.ImageLocation,
		t.SourceLocation,
		t.Provider,
		t.MIME,
		t.Width,
		t.Height,
	)
	return err
}

// GetByID fetches one thumbnail scoped to its owner.
func (r *ThumbnailRepositoryPG) GetByID(ctx context.Context, id, ownerID string) (*domain.Thumbnail, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+thumbnailColumns+` FROM thumbnails WHERE id = $1 AND owner_id = $2`,
		id, ownerID)
	return scanThumbnail(row)
}

// ListByOwner returns the owner's thumbnails, newest first.
func (r *ThumbnailRepositoryPG) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Thumbnail, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+thumbnailColumns+`
FROM thumbnails
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var thumbnails []domain.Thumbnail
	for rows.Next() {
		var t domain.Thumbnail
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Prompt, &t.EnhancedPrompt, &t.ImageLocation, &t.SourceLocation, &t.Provider, &t.MIME, &t.Width, &t.Height, &t.CreatedAt); err != nil {
			return nil, err
		}
		thumbnails = append(thumbnails, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return thumbnails, nil
}

// Delete removes one thumbnail scoped to its owner.
func (r *ThumbnailRepositoryPG) Delete(ctx context.Context, id, ownerID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM thumbnails WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanThumbnail(row pgx.Row) (*domain.Thumbnail, error) {
	var t domain.Thumbnail
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Prompt, &t.EnhancedPrompt, &t.ImageLocation, &t.SourceLocation, &t.Provider, &t.MIME, &t.Width, &t.Height, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}
