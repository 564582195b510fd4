package store

import (
	"context"

	"github.com/Andrew920528/vibe-30/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
// Stores never enforce dense positions; services do.
type Store interface {
	Buckets() Buckets
	Activities() Activities
}

// Transactor is implemented by stores that can run several writes as one
// unit. fn receives a Store bound to the transaction; returning an error
// rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type Buckets interface {
	// Create inserts the bucket row only, assigning ID and timestamps.
	Create(ctx context.Context, b *model.Bucket) (*model.Bucket, error)
	// GetByID returns the bucket with activities ordered by position.
	GetByID(ctx context.Context, userID, bucketID string) (*model.Bucket, error)
	// List returns the user's buckets newest first, activities ordered by position.
	List(ctx context.Context, userID string) ([]*model.Bucket, error)
	Rename(ctx context.Context, userID, bucketID, name string) error
	// Touch bumps updated_at after a change to the activity set.
	Touch(ctx context.Context, bucketID string) error
	// Delete removes the bucket and every activity it owns.
	Delete(ctx context.Context, userID, bucketID string) error
}

type Activities interface {
	// InsertMany stores activities with the positions they carry.
	InsertMany(ctx context.Context, bucketID string, acts []model.Activity) error
	// Append inserts one activity at max(position)+1, or 0 in an empty
	// bucket, in a single statement.
	Append(ctx context.Context, bucketID, text string, description *string) (*model.Activity, error)
	// GetByID resolves an activity through its bucket's owner.
	GetByID(ctx context.Context, userID, activityID string) (*model.Activity, error)
	ListByBucket(ctx context.Context, bucketID string) ([]model.Activity, error)
	Delete(ctx context.Context, activityID string) error
	DeleteByBucket(ctx context.Context, bucketID string) error
	// Reposition sets position i on orderedIDs[i].
	Reposition(ctx context.Context, bucketID string, orderedIDs []string) error
}
