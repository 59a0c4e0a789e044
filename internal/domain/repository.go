package domain

import "context"

// ThumbnailRepository defines persistence for thumbnail records.
type ThumbnailRepository interface {
	Insert(ctx context.Context, t *Thumbnail) error
	GetByID(ctx context.Context, id, ownerID string) (*Thumbnail, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Thumbnail, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// UsageRepository updates and reads per-owner daily generation counters.
type UsageRepository interface {
	Increment(ctx context.Context, ownerID, day string, generated, failed, imagesStored int) error
	Summary(ctx context.Context, ownerID, day string) (*DailyUsage, error)
}
