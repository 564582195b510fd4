package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andrew920528/vibe-30/internal/model"
	"github.com/Andrew920528/vibe-30/internal/store"
)

// Run exercises the compliance suite against a store.Store implementation.
// makeStore must return a store with the schema applied; the suite isolates
// itself with fresh user ids so the store may be shared.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	t.Run("CreateAndGetOrdersByPosition", func(t *testing.T) {
		user := newUser()
		b := mustCreate(t, s, user, "Weekend")
		desc := "outside"
		require.NoError(t, s.Activities().InsertMany(ctx, b.ID, []model.Activity{
			{Text: "c", Position: 2},
			{Text: "a", Position: 0, Description: &desc},
			{Text: "b", Position: 1},
		}))

		got, err := s.Buckets().GetByID(ctx, user, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "Weekend", got.Name)
		assert.Equal(t, []string{"a", "b", "c"}, texts(got.Activities))
		require.NotNil(t, got.Activities[0].Description)
		assert.Equal(t, "outside", *got.Activities[0].Description)
		assert.Nil(t, got.Activities[1].Description)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("GetIsIdempotent", func(t *testing.T) {
		user := newUser()
		b := mustCreate(t, s, user, "Idem")
		first, err := s.Buckets().GetByID(ctx, user, b.ID)
		require.NoError(t, err)
		second, err := s.Buckets().GetByID(ctx, user, b.ID)
		require.NoError(t, err)
		assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
		assert.Equal(t, first.Name, second.Name)
	})

	t.Run("OwnerScoping", func(t *testing.T) {
		user := newUser()
		b := mustCreate(t, s, user, "Mine")
		_, err := s.Buckets().GetByID(ctx, newUser(), b.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.ErrorIs(t, s.Buckets().Rename(ctx, newUser(), b.ID, "x"), model.ErrNotFound)
		assert.ErrorIs(t, s.Buckets().Delete(ctx, newUser(), b.ID), model.ErrNotFound)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		user := newUser()
		older := mustCreate(t, s, user, "older")
		time.Sleep(5 * time.Millisecond)
		newer := mustCreate(t, s, user, "newer")
		require.NoError(t, s.Activities().InsertMany(ctx, newer.ID, []model.Activity{
			{Text: "second", Position: 1},
			{Text: "first", Position: 0},
		}))

		list, err := s.Buckets().List(ctx, user)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)
		assert.Equal(t, []string{"first", "second"}, texts(list[0].Activities))
		assert.Empty(t, list[1].Activities)

		empty, err := s.Buckets().List(ctx, newUser())
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("RenameAndTouchBumpUpdatedAt", func(t *testing.T) {
		user := newUser()
		b := mustCreate(t, s, user, "before")
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, s.Buckets().Rename(ctx, user, b.ID, "after"))
		got, err := s.Buckets().GetByID(ctx, user, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "after", got.Name)
		assert.True(t, got.UpdatedAt.After(b.UpdatedAt), "updated_at must advance on rename")
		assert.True(t, got.CreatedAt.Equal(b.CreatedAt), "created_at is immutable")

		time.Sleep(5 * time.Millisecond)
		require.NoError(t, s.Buckets().Touch(ctx, b.ID))
		touched, err := s.Buckets().GetByID(ctx, user, b.ID)
		require.NoError(t, err)
		assert.True(t, touched.UpdatedAt.After(got.UpdatedAt))
	})

	t.Run("AppendAssignsNextPosition", func(t *testing.T) {
		user := newUser()
		b := mustCreate(t, s, user, "append")

		first, err := s.Activities().Append(ctx, b.ID, "one", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, first.Position)
		assert.NotEmpty(t, first.ID)

		require.NoError(t, s.Activities().InsertMany(ctx, b.ID, []model.Activity{{Text: "gap", Position: 5}}))
		next, err := s.Activities().Append(ctx, b.ID, "after-gap", nil)
		require.NoError(t, err)
		assert.Equal(t, 6, next.Position)
	})

	t.Run("ConcurrentAppendsGetDistinctPositions", func(t *testing.T) {
		user := newUser()
		b := mustCreate(t, s, user, "concurrent")

		const writers = 8
		appendOne := func(i int) error {
			text := fmt.Sprintf("a%d", i)
			tx, ok := s.(store.Transactor)
			if !ok || i%2 == 0 {
				_, err := s.Activities().Append(ctx, b.ID, text, nil)
				return err
			}
			// odd writers go through a transaction, as the service does
			return tx.WithinTx(ctx, func(st store.Store) error {
				_, err := st.Activities().Append(ctx, b.ID, text, nil)
				return err
			})
		}

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- appendOne(i)
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		acts, err := s.Activities().ListByBucket(ctx, b.ID)
		require.NoError(t, err)
		require.Len(t, acts, writers)
		for i, a := range acts {
			assert.Equal(t, i, a.Position, "activity %s", a.Text)
		}
	})

	t.Run("ActivityLookupRepositionDelete", func(t *testing.T) {
		user := newUser()
		b := mustCreate(t, s, user, "ops")
		require.NoError(t, s.Activities().InsertMany(ctx, b.ID, []model.Activity{
			{Text: "a", Position: 0},
			{Text: "b", Position: 4},
			{Text: "c", Position: 9},
		}))
		acts, err := s.Activities().ListByBucket(ctx, b.ID)
		require.NoError(t, err)
		require.Len(t, acts, 3)

		got, err := s.Activities().GetByID(ctx, user, acts[1].ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.BucketID)
		_, err = s.Activities().GetByID(ctx, newUser(), acts[1].ID)
		assert.ErrorIs(t, err, model.ErrNotFound)

		require.NoError(t, s.Activities().Delete(ctx, acts[1].ID))
		assert.ErrorIs(t, s.Activities().Delete(ctx, acts[1].ID), model.ErrNotFound)

		require.NoError(t, s.Activities().Reposition(ctx, b.ID, []string{acts[2].ID, acts[0].ID}))
		after, err := s.Activities().ListByBucket(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, texts(after))
		assert.Equal(t, []int{0, 1}, positions(after))
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		user := newUser()
		b := mustCreate(t, s, user, "doomed")
		require.NoError(t, s.Activities().InsertMany(ctx, b.ID, []model.Activity{{Text: "x", Position: 0}}))

		require.NoError(t, s.Buckets().Delete(ctx, user, b.ID))
		_, err := s.Buckets().GetByID(ctx, user, b.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
		left, err := s.Activities().ListByBucket(ctx, b.ID)
		require.NoError(t, err)
		assert.Empty(t, left)
		assert.ErrorIs(t, s.Buckets().Delete(ctx, user, b.ID), model.ErrNotFound)
	})

	t.Run("TransactionRollsBack", func(t *testing.T) {
		tx, ok := s.(store.Transactor)
		if !ok {
			t.Skip("store does not support transactions")
		}
		user := newUser()
		boom := errors.New("boom")
		err := tx.WithinTx(ctx, func(ts store.Store) error {
			if _, err := ts.Buckets().Create(ctx, &model.Bucket{UserID: user, Name: "rolled back"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		list, err := s.Buckets().List(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, list)

		var id string
		require.NoError(t, tx.WithinTx(ctx, func(ts store.Store) error {
			b, err := ts.Buckets().Create(ctx, &model.Bucket{UserID: user, Name: "kept"})
			if err != nil {
				return err
			}
			id = b.ID
			return ts.Activities().InsertMany(ctx, b.ID, []model.Activity{{Text: "k", Position: 0}})
		}))
		got, err := s.Buckets().GetByID(ctx, user, id)
		require.NoError(t, err)
		assert.Len(t, got.Activities, 1)
	})
}

func newUser() string { return "u-" + uuid.New().String() }

func mustCreate(t *testing.T, s store.Store, user, name string) *model.Bucket {
	t.Helper()
	b, err := s.Buckets().Create(context.Background(), &model.Bucket{UserID: user, Name: name})
	require.NoError(t, err)
	require.NotEmpty(t, b.ID)
	return b
}

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
