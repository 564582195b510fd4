package model

import "time"

// MaxActivities caps the activities one bucket may hold.
const MaxActivities = 500

// Bucket is a named, user-owned, ordered collection of activities.
type Bucket struct {
	ID         string     `json:"id"`
	UserID     string     `json:"-"`
	Name       string     `json:"name"`
	Activities []Activity `json:"activities"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Activity is one entry of a bucket. Position orders activities ascending.
type Activity struct {
	ID          string  `json:"id"`
	BucketID    string  `json:"bucketId,omitempty"`
	Text        string  `json:"text"`
	Description *string `json:"description,omitempty"`
	Position    int     `json:"position"`
}

// NewActivity is the caller supplied part of an activity.
type NewActivity struct {
	Text        string  `json:"text"`
	Description *string `json:"description,omitempty"`
}

type CreateBucketRequest struct {
	Name       string        `json:"name"`
	Activities []NewActivity `json:"activities"`
}

// UpdateBucketRequest is a partial update. A nil Name keeps the name.
// A nil Activities keeps the activity list; a non-nil slice, even an
// empty one, replaces it entirely.
type UpdateBucketRequest struct {
	Name       *string    `json:"name,omitempty"`
	Activities []Activity `json:"activities"`
}

// Item is a row of the demo key-value table.
type Item struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}
