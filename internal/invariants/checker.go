// Package invariants checks stored buckets against the rules the service
// promises, using only the public API. It treats the service as a black
// box: nothing here reads the database.
package invariants

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Andrew920528/vibe-30/client"
)

const (
	DensePositions  = "dense_positions"
	UniqueIDs       = "unique_activity_ids"
	OwnedActivities = "activities_belong_to_bucket"
	NamePresent     = "name_present"
	Timestamps      = "updated_not_before_created"
	OwnerIsolation  = "owner_isolation"
	CascadeDelete   = "cascade_delete"
	DrawMembership  = "draw_returns_member"
)

// Violation is one broken rule on one bucket.
type Violation struct {
	Invariant string `json:"invariant"`
	BucketID  string `json:"bucketId"`
	Detail    string `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.BucketID, v.Detail, v.Invariant)
}

// Checker runs invariant checks through a client.
type Checker struct {
	c *client.Client
}

func NewChecker(c *client.Client) *Checker {
	return &Checker{c: c}
}

// CheckBucket fetches one bucket and checks its read-side invariants.
func (ch *Checker) CheckBucket(ctx context.Context, bucketID string) ([]Violation, error) {
	b, err := ch.c.GetBucket(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	return Inspect(b), nil
}

// CheckAll inspects every bucket the caller owns.
func (ch *Checker) CheckAll(ctx context.Context) ([]Violation, error) {
	bs, err := ch.c.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}
	var out []Violation
	for i := range bs {
		out = append(out, Inspect(&bs[i])...)
	}
	return out, nil
}

// Inspect checks a bucket value without touching the service.
func Inspect(b *client.Bucket) []Violation {
	var out []Violation
	add := func(inv, format string, args ...interface{}) {
		out = append(out, Violation{Invariant: inv, BucketID: b.ID, Detail: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(b.Name) == "" {
		add(NamePresent, "bucket name is blank")
	}
	if !b.CreatedAt.IsZero() && b.UpdatedAt.Before(b.CreatedAt) {
		add(Timestamps, "updatedAt %s is before createdAt %s", b.UpdatedAt, b.CreatedAt)
	}

	seen := make(map[string]bool, len(b.Activities))
	for i, a := range b.Activities {
		if a.Position != i {
			add(DensePositions, "activity %s at index %d has position %d", a.ID, i, a.Position)
		}
		if seen[a.ID] {
			add(UniqueIDs, "activity id %s appears more than once", a.ID)
		}
		seen[a.ID] = true
		if a.BucketID != "" && a.BucketID != b.ID {
			add(OwnedActivities, "activity %s reports bucket %s", a.ID, a.BucketID)
		}
	}
	return out
}

// Probe drives a scratch bucket through create, append, reorder, remove,
// draw and delete, inspecting it after every step. The scratch bucket is
// deleted even when a step fails.
func (ch *Checker) Probe(ctx context.Context) (out []Violation, err error) {
	b, err := ch.c.CreateBucket(ctx, client.CreateBucketRequest{
		Name:       "invariant probe",
		Activities: []client.NewActivity{{Text: "first"}, {Text: "second"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create probe bucket: %w", err)
	}
	deleted := false
	defer func() {
		if !deleted {
			_ = ch.c.DeleteBucket(context.WithoutCancel(ctx), b.ID)
		}
	}()
	out = append(out, Inspect(b)...)

	third, err := ch.c.AddActivity(ctx, b.ID, "third", nil)
	if err != nil {
		return out, fmt.Errorf("add activity: %w", err)
	}
	if third.Position != 2 {
		out = append(out, Violation{DensePositions, b.ID, fmt.Sprintf("appended activity got position %d, want 2", third.Position)})
	}

	reordered, err := ch.c.ReorderActivities(ctx, b.ID, []string{third.ID})
	if err != nil {
		return out, fmt.Errorf("reorder: %w", err)
	}
	out = append(out, Inspect(reordered)...)
	if len(reordered.Activities) == 0 || reordered.Activities[0].ID != third.ID {
		out = append(out, Violation{DensePositions, b.ID, "reordered activity is not first"})
	}

	if err := ch.c.RemoveActivity(ctx, b.ID, reordered.Activities[0].ID); err != nil {
		return out, fmt.Errorf("remove activity: %w", err)
	}
	after, err := ch.c.GetBucket(ctx, b.ID)
	if err != nil {
		return out, fmt.Errorf("get after remove: %w", err)
	}
	out = append(out, Inspect(after)...)

	drawn, err := ch.c.DrawActivity(ctx, b.ID)
	if err != nil {
		return out, fmt.Errorf("draw: %w", err)
	}
	if !contains(after.Activities, drawn.ID) {
		out = append(out, Violation{DrawMembership, b.ID, fmt.Sprintf("drew %s which is not in the bucket", drawn.ID)})
	}

	actID := after.Activities[0].ID
	if err := ch.c.DeleteBucket(ctx, b.ID); err != nil {
		return out, fmt.Errorf("delete probe bucket: %w", err)
	}
	deleted = true
	// the activity must go with its bucket
	err = ch.c.RemoveActivity(ctx, "", actID)
	if !errors.Is(err, client.ErrNotFound) {
		out = append(out, Violation{CascadeDelete, b.ID, fmt.Sprintf("activity %s still reachable after bucket delete (err=%v)", actID, err)})
	}
	return out, nil
}

// CheckIsolation creates a bucket as this checker's user and verifies that
// other, signed in as a different user, can neither read, list nor draw
// from it.
func (ch *Checker) CheckIsolation(ctx context.Context, other *client.Client) (out []Violation, err error) {
	b, err := ch.c.CreateBucket(ctx, client.CreateBucketRequest{
		Name:       "isolation probe",
		Activities: []client.NewActivity{{Text: "private"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create probe bucket: %w", err)
	}
	defer func() { _ = ch.c.DeleteBucket(context.WithoutCancel(ctx), b.ID) }()

	if _, err := other.GetBucket(ctx, b.ID); !errors.Is(err, client.ErrNotFound) {
		out = append(out, Violation{OwnerIsolation, b.ID, fmt.Sprintf("other user get: want not found, got %v", err)})
	}
	if _, err := other.DrawActivity(ctx, b.ID); !errors.Is(err, client.ErrNotFound) {
		out = append(out, Violation{OwnerIsolation, b.ID, fmt.Sprintf("other user draw: want not found, got %v", err)})
	}
	bs, err := other.ListBuckets(ctx)
	if err != nil {
		return out, fmt.Errorf("list as other user: %w", err)
	}
	for _, ob := range bs {
		if ob.ID == b.ID {
			out = append(out, Violation{OwnerIsolation, b.ID, "bucket appears in another user's list"})
		}
	}
	return out, nil
}

func contains(acts []client.Activity, id string) bool {
	for _, a := range acts {
		if a.ID == id {
			return true
		}
	}
	return false
}
