package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Andrew920528/vibe-30/internal/model"
	"github.com/Andrew920528/vibe-30/internal/store"
)

// memStore is a non-transactional fake so the compensation paths run.
type memStore struct {
	mu      sync.Mutex
	seq     int
	clock   time.Time
	buckets map[string]model.Bucket
	acts    map[string]model.Activity

	failInsertMany error
	failDelete     error
	failList       error
}

func newMemStore() *memStore {
	return &memStore{
		clock:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		buckets: map[string]model.Bucket{},
		acts:    map[string]model.Activity{},
	}
}

func (m *memStore) Buckets() store.Buckets       { return memBuckets{m} }
func (m *memStore) Activities() store.Activities { return memActivities{m} }

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) activitiesOf(bucketID string) []model.Activity {
	out := []model.Activity{}
	for _, a := range m.acts {
		if a.BucketID == bucketID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

type memBuckets struct{ m *memStore }

func (b memBuckets) Create(_ context.Context, in *model.Bucket) (*model.Bucket, error) {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	ts := b.m.tick()
	out := model.Bucket{ID: b.m.nextID("b"), UserID: in.UserID, Name: in.Name, CreatedAt: ts, UpdatedAt: ts}
	b.m.buckets[out.ID] = out
	out.Activities = []model.Activity{}
	return &out, nil
}

func (b memBuckets) GetByID(_ context.Context, userID, bucketID string) (*model.Bucket, error) {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	bk, ok := b.m.buckets[bucketID]
	if !ok || bk.UserID != userID {
		return nil, model.ErrNotFound
	}
	bk.Activities = b.m.activitiesOf(bucketID)
	return &bk, nil
}

func (b memBuckets) List(_ context.Context, userID string) ([]*model.Bucket, error) {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	if b.m.failList != nil {
		return nil, b.m.failList
	}
	var out []*model.Bucket
	for _, bk := range b.m.buckets {
		if bk.UserID == userID {
			bk := bk
			bk.Activities = b.m.activitiesOf(bk.ID)
			out = append(out, &bk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (b memBuckets) Rename(_ context.Context, userID, bucketID, name string) error {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	bk, ok := b.m.buckets[bucketID]
	if !ok || bk.UserID != userID {
		return model.ErrNotFound
	}
	bk.Name = name
	bk.UpdatedAt = b.m.tick()
	b.m.buckets[bucketID] = bk
	return nil
}

func (b memBuckets) Touch(_ context.Context, bucketID string) error {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	bk, ok := b.m.buckets[bucketID]
	if !ok {
		return model.ErrNotFound
	}
	bk.UpdatedAt = b.m.tick()
	b.m.buckets[bucketID] = bk
	return nil
}

func (b memBuckets) Delete(_ context.Context, userID, bucketID string) error {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	if b.m.failDelete != nil {
		return b.m.failDelete
	}
	bk, ok := b.m.buckets[bucketID]
	if !ok || bk.UserID != userID {
		return model.ErrNotFound
	}
	for id, a := range b.m.acts {
		if a.BucketID == bucketID {
			delete(b.m.acts, id)
		}
	}
	delete(b.m.buckets, bucketID)
	return nil
}

type memActivities struct{ m *memStore }

func (a memActivities) InsertMany(_ context.Context, bucketID string, acts []model.Activity) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if a.m.failInsertMany != nil && len(acts) > 0 {
		return a.m.failInsertMany
	}
	for _, act := range acts {
		if act.ID == "" {
			act.ID = a.m.nextID("a")
		}
		act.BucketID = bucketID
		a.m.acts[act.ID] = act
	}
	return nil
}

func (a memActivities) Append(_ context.Context, bucketID, text string, description *string) (*model.Activity, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	pos := 0
	for _, existing := range a.m.activitiesOf(bucketID) {
		if existing.Position >= pos {
			pos = existing.Position + 1
		}
	}
	act := model.Activity{ID: a.m.nextID("a"), BucketID: bucketID, Text: text, Description: description, Position: pos}
	a.m.acts[act.ID] = act
	return &act, nil
}

func (a memActivities) GetByID(_ context.Context, userID, activityID string) (*model.Activity, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	act, ok := a.m.acts[activityID]
	if !ok || a.m.buckets[act.BucketID].UserID != userID {
		return nil, model.ErrNotFound
	}
	return &act, nil
}

func (a memActivities) ListByBucket(_ context.Context, bucketID string) ([]model.Activity, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	return a.m.activitiesOf(bucketID), nil
}

func (a memActivities) Delete(_ context.Context, activityID string) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if _, ok := a.m.acts[activityID]; !ok {
		return model.ErrNotFound
	}
	delete(a.m.acts, activityID)
	return nil
}

func (a memActivities) DeleteByBucket(_ context.Context, bucketID string) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	for id, act := range a.m.acts {
		if act.BucketID == bucketID {
			delete(a.m.acts, id)
		}
	}
	return nil
}

func (a memActivities) Reposition(_ context.Context, bucketID string, orderedIDs []string) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	for i, id := range orderedIDs {
		if act, ok := a.m.acts[id]; ok && act.BucketID == bucketID {
			act.Position = i
			a.m.acts[id] = act
		}
	}
	return nil
}
