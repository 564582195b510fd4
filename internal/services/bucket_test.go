package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andrew920528/vibe-30/internal/draw"
	"github.com/Andrew920528/vibe-30/internal/events"
	"github.com/Andrew920528/vibe-30/internal/model"
	"github.com/Andrew920528/vibe-30/internal/store"
	"github.com/Andrew920528/vibe-30/internal/store/sqlite"
)

const user = "user-1"

type recordingPublisher struct {
	mu    sync.Mutex
	kinds []events.Kind
}

func (p *recordingPublisher) Publish(evt events.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, evt.Kind)
	return true
}

// backends runs fn against a transactional and a non-transactional store.
func backends(t *testing.T, fn func(t *testing.T, svc *BucketService)) {
	t.Run("sqlite", func(t *testing.T) {
		s, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "svc.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.DB().Close() })
		fn(t, NewBucketService(s, nil, zerolog.Nop()))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewBucketService(newMemStore(), nil, zerolog.Nop()))
	})
}

func str(s string) *string { return &s }

func texts(acts []model.Activity) []string {
	out := make([]string, len(acts))
	for i, a := range acts {
		out[i] = a.Text
	}
	return out
}

func positions(acts []model.Activity) []int {
	out := make([]int, len(acts))
	for i, a := range acts {
		out[i] = a.Position
	}
	return out
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, svc *BucketService) {
		ctx := context.Background()
		b, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{
			Name: "Rainy day",
			Activities: []model.NewActivity{
				{Text: "Read", Description: str("a chapter")},
				{Text: "Bake"},
				{Text: "Nap", Description: str("")},
			},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, b.ID)

		got, err := svc.GetBucket(ctx, user, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "Rainy day", got.Name)
		assert.Equal(t, []string{"Read", "Bake", "Nap"}, texts(got.Activities))
		assert.Equal(t, []int{0, 1, 2}, positions(got.Activities))
		require.NotNil(t, got.Activities[0].Description)
		assert.Equal(t, "a chapter", *got.Activities[0].Description)
		assert.Nil(t, got.Activities[1].Description)
		assert.Nil(t, got.Activities[2].Description, "empty description is stored as absent")

		again, err := svc.GetBucket(ctx, user, b.ID)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	})
}

func TestCreateEmptyBucket(t *testing.T) {
	backends(t, func(t *testing.T, svc *BucketService) {
		b, err := svc.CreateBucket(context.Background(), user, model.CreateBucketRequest{Name: "Solo"})
		require.NoError(t, err)
		assert.Len(t, b.Activities, 0)
		assert.NotNil(t, b.Activities)
	})
}

func TestListBucketsSortsActivities(t *testing.T) {
	backends(t, func(t *testing.T, svc *BucketService) {
		ctx := context.Background()
		first, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "first", Activities: []model.NewActivity{{Text: "x"}, {Text: "y"}}})
		require.NoError(t, err)
		second, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "second"})
		require.NoError(t, err)
		_, err = svc.CreateBucket(ctx, "someone-else", model.CreateBucketRequest{Name: "hidden"})
		require.NoError(t, err)

		list, err := svc.ListBuckets(ctx, user)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, first.ID, list[1].ID)
		for _, b := range list {
			for i := 1; i < len(b.Activities); i++ {
				assert.Less(t, b.Activities[i-1].Position, b.Activities[i].Position)
			}
		}

		none, err := svc.ListBuckets(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})
}

func TestUpdateBucketReorderRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, svc *BucketService) {
		ctx := context.Background()
		b, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{
			Name:       "order",
			Activities: []model.NewActivity{{Text: "A", Description: str("first")}, {Text: "B"}, {Text: "C"}},
		})
		require.NoError(t, err)
		a, bb, c := b.Activities[0], b.Activities[1], b.Activities[2]
		bb.Position, a.Position, c.Position = 0, 1, 2

		updated, err := svc.UpdateBucket(ctx, user, b.ID, model.UpdateBucketRequest{
			Activities: []model.Activity{bb, a, c},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A", "C"}, texts(updated.Activities))

		got, err := svc.GetBucket(ctx, user, b.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A", "C"}, texts(got.Activities))
		assert.Equal(t, a.ID, got.Activities[1].ID, "own ids survive a reorder")
		require.NotNil(t, got.Activities[1].Description)
		assert.Equal(t, "first", *got.Activities[1].Description)
		assert.Equal(t, "order", got.Name)
	})
}

func TestUpdateBucketPacksSparsePositions(t *testing.T) {
	backends(t, func(t *testing.T, svc *BucketService) {
		ctx := context.Background()
		b, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "sparse"})
		require.NoError(t, err)

		got, err := svc.UpdateBucket(ctx, user, b.ID, model.UpdateBucketRequest{
			Activities: []model.Activity{
				{Text: "late", Position: 40},
				{Text: "early", Position: 3},
				{Text: "tie-1", Position: 10},
				{Text: "tie-2", Position: 10},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"early", "tie-1", "tie-2", "late"}, texts(got.Activities))
		assert.Equal(t, []int{0, 1, 2, 3}, positions(got.Activities))
	})
}

func TestUpdateBucketPartial(t *testing.T) {
	backends(t, func(t *testing.T, svc *BucketService) {
		ctx := context.Background()
		b, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "old", Activities: []model.NewActivity{{Text: "keep"}}})
		require.NoError(t, err)

		renamed, err := svc.UpdateBucket(ctx, user, b.ID, model.UpdateBucketRequest{Name: str("new")})
		require.NoError(t, err)
		assert.Equal(t, "new", renamed.Name)
		assert.Equal(t, []string{"keep"}, texts(renamed.Activities))
		assert.False(t, renamed.UpdatedAt.Before(b.UpdatedAt))
		assert.True(t, renamed.CreatedAt.Equal(b.CreatedAt))

		cleared, err := svc.UpdateBucket(ctx, user, b.ID, model.UpdateBucketRequest{Activities: []model.Activity{}})
		require.NoError(t, err)
		assert.Equal(t, "new", cleared.Name)
		assert.Empty(t, cleared.Activities)

		same, err := svc.UpdateBucket(ctx, user, b.ID, model.UpdateBucketRequest{})
		require.NoError(t, err)
		assert.Equal(t, "new", same.Name)

		_, err = svc.UpdateBucket(ctx, user, "missing", model.UpdateBucketRequest{Name: str("x")})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestDeleteBucketCascades(t *testing.T) {
	backends(t, func(t *testing.T, svc *BucketService) {
		ctx := context.Background()
		b, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "gone", Activities: []model.NewActivity{{Text: "a"}}})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteBucket(ctx, user, b.ID))
		_, err = svc.GetBucket(ctx, user, b.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.ErrorIs(t, svc.RemoveActivity(ctx, user, b.Activities[0].ID), model.ErrNotFound)
		assert.ErrorIs(t, svc.DeleteBucket(ctx, user, b.ID), model.ErrNotFound)
	})
}

func TestAddActivityAppends(t *testing.T) {
	backends(t, func(t *testing.T, svc *BucketService) {
		ctx := context.Background()
		b, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "grow"})
		require.NoError(t, err)

		first, err := svc.AddActivity(ctx, user, b.ID, "walk", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, first.Position)

		second, err := svc.AddActivity(ctx, user, b.ID, "swim", str("pool"))
		require.NoError(t, err)
		assert.Equal(t, 1, second.Position)

		got, err := svc.GetBucket(ctx, user, b.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"walk", "swim"}, texts(got.Activities))

		_, err = svc.AddActivity(ctx, "intruder", b.ID, "x", nil)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestRemoveActivityRepacksPositions(t *testing.T) {
	backends(t, func(t *testing.T, svc *BucketService) {
		ctx := context.Background()
		b, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{
			Name:       "trim",
			Activities: []model.NewActivity{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}},
		})
		require.NoError(t, err)

		require.NoError(t, svc.RemoveActivity(ctx, user, b.Activities[1].ID))
		got, err := svc.GetBucket(ctx, user, b.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "d"}, texts(got.Activities))
		assert.Equal(t, []int{0, 1, 2}, positions(got.Activities))

		added, err := svc.AddActivity(ctx, user, b.ID, "e", nil)
		require.NoError(t, err)
		assert.Equal(t, 3, added.Position, "no gaps after removal")

		assert.ErrorIs(t, svc.RemoveActivity(ctx, "intruder", b.Activities[0].ID), model.ErrNotFound)
	})
}

func TestValidationHappensBeforePersistence(t *testing.T) {
	mem := newMemStore()
	svc := NewBucketService(mem, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "  "})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "ok", Activities: []model.NewActivity{{Text: "fine"}, {Text: ""}}})
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Contains(t, err.Error(), "activity 1")
	_, err = svc.UpdateBucket(ctx, user, "b-x", model.UpdateBucketRequest{Name: str("")})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = svc.UpdateBucket(ctx, user, "b-x", model.UpdateBucketRequest{Activities: []model.Activity{{Text: "a", Position: -1}}})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = svc.AddActivity(ctx, user, "b-x", "", nil)
	assert.ErrorIs(t, err, model.ErrValidation)

	assert.Zero(t, mem.seq, "no store writes for invalid input")
	assert.Empty(t, mem.buckets)
}

func TestMissingUserIsUnauthenticated(t *testing.T) {
	svc := NewBucketService(newMemStore(), nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.ListBuckets(ctx, "")
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
	_, err = svc.CreateBucket(ctx, "", model.CreateBucketRequest{Name: "x"})
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
	_, err = svc.GetBucket(ctx, "", "b")
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
	assert.ErrorIs(t, svc.DeleteBucket(ctx, "", "b"), model.ErrUnauthenticated)
	assert.ErrorIs(t, svc.RemoveActivity(ctx, "", "a"), model.ErrUnauthenticated)
	_, err = svc.DrawActivity(ctx, "", "b")
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestCreateBucketCompensatesFailedActivityInsert(t *testing.T) {
	mem := newMemStore()
	cause := errors.New("insert rejected")
	mem.failInsertMany = cause
	svc := NewBucketService(mem, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "X", Activities: []model.NewActivity{{Text: "a"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.ErrorIs(t, err, cause)

	mem.failInsertMany = nil
	list, err := svc.ListBuckets(ctx, user)
	require.NoError(t, err)
	for _, b := range list {
		assert.NotEqual(t, "X", b.Name)
	}
	assert.Empty(t, mem.buckets)
}

func TestCreateBucketReportsOriginalErrorWhenCompensationFails(t *testing.T) {
	mem := newMemStore()
	cause := errors.New("insert rejected")
	mem.failInsertMany = cause
	mem.failDelete = errors.New("delete rejected")
	svc := NewBucketService(mem, nil, zerolog.Nop())

	_, err := svc.CreateBucket(context.Background(), user, model.CreateBucketRequest{Name: "X", Activities: []model.NewActivity{{Text: "a"}}})
	assert.ErrorIs(t, err, cause)
	assert.Len(t, mem.buckets, 1, "orphan remains when the compensating delete fails")
}

func TestPersistenceErrorIsGeneric(t *testing.T) {
	mem := newMemStore()
	mem.failList = errors.New("connection reset by peer")
	svc := NewBucketService(mem, nil, zerolog.Nop())

	_, err := svc.ListBuckets(context.Background(), user)
	var perr *model.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "list buckets", perr.Op)
	assert.NotContains(t, err.Error(), "connection reset")
	assert.ErrorIs(t, err, mem.failList)
}

func TestDrawActivity(t *testing.T) {
	mem := newMemStore()
	svc := NewBucketService(mem, nil, zerolog.Nop(), WithPicker(draw.NewPicker(func() float64 { return 0.5 })))
	ctx := context.Background()

	b, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "abc", Activities: []model.NewActivity{{Text: "A"}, {Text: "B"}, {Text: "C"}}})
	require.NoError(t, err)
	got, err := svc.DrawActivity(ctx, user, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", got.Text)

	empty, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "empty"})
	require.NoError(t, err)
	_, err = svc.DrawActivity(ctx, user, empty.ID)
	assert.ErrorIs(t, err, draw.ErrNoActivities)

	_, err = svc.DrawActivity(ctx, user, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMutationsPublishEvents(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewBucketService(newMemStore(), pub, zerolog.Nop())
	ctx := context.Background()

	b, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "ev"})
	require.NoError(t, err)
	a, err := svc.AddActivity(ctx, user, b.ID, "x", nil)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveActivity(ctx, user, a.ID))
	_, err = svc.UpdateBucket(ctx, user, b.ID, model.UpdateBucketRequest{Name: str("ev2")})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteBucket(ctx, user, b.ID))
	_, err = svc.GetBucket(ctx, user, b.ID)
	require.Error(t, err)

	assert.Equal(t, []events.Kind{
		events.BucketCreated,
		events.ActivityAdded,
		events.ActivityRemoved,
		events.BucketUpdated,
		events.BucketDeleted,
	}, pub.kinds)
}

var _ store.Store = (*memStore)(nil)

func TestActivityCapacity(t *testing.T) {
	backends(t, func(t *testing.T, svc *BucketService) {
		ctx := context.Background()
		full := make([]model.NewActivity, model.MaxActivities)
		for i := range full {
			full[i] = model.NewActivity{Text: fmt.Sprintf("a%d", i)}
		}
		b, err := svc.CreateBucket(ctx, user, model.CreateBucketRequest{Name: "full", Activities: full})
		require.NoError(t, err)

		_, err = svc.AddActivity(ctx, user, b.ID, "one too many", nil)
		assert.ErrorIs(t, err, model.ErrValidation)

		got, err := svc.GetBucket(ctx, user, b.ID)
		require.NoError(t, err)
		require.Len(t, got.Activities, model.MaxActivities)

		_, err = svc.CreateBucket(ctx, user, model.CreateBucketRequest{
			Name:       "over",
			Activities: append(full, model.NewActivity{Text: "extra"}),
		})
		assert.ErrorIs(t, err, model.ErrValidation)

		_, err = svc.UpdateBucket(ctx, user, b.ID, model.UpdateBucketRequest{
			Activities: append(got.Activities, model.Activity{Text: "extra", Position: model.MaxActivities}),
		})
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}
