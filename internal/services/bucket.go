package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Andrew920528/vibe-30/internal/draw"
	"github.com/Andrew920528/vibe-30/internal/events"
	"github.com/Andrew920528/vibe-30/internal/model"
	"github.com/Andrew920528/vibe-30/internal/observability"
	"github.com/Andrew920528/vibe-30/internal/store"
)

// BucketService owns the bucket and activity lifecycle: validation, dense
// positions, multi-statement writes and the error taxonomy callers see.
// It never retries.
type BucketService struct {
	store  store.Store
	events events.Publisher
	picker draw.Picker
	log    zerolog.Logger
}

type Option func(*BucketService)

// WithPicker replaces the random source used by DrawActivity.
func WithPicker(p draw.Picker) Option {
	return func(s *BucketService) { s.picker = p }
}

// NewBucketService wires a service over s. A nil publisher discards events.
func NewBucketService(s store.Store, pub events.Publisher, log zerolog.Logger, opts ...Option) *BucketService {
	if pub == nil {
		pub = events.Nop{}
	}
	svc := &BucketService{store: s, events: pub, log: log}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// ListBuckets returns the user's buckets newest first.
func (s *BucketService) ListBuckets(ctx context.Context, userID string) (out []*model.Bucket, err error) {
	const op = "list_buckets"
	defer s.observe(op, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	out, err = s.store.Buckets().List(ctx, userID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if out == nil {
		out = []*model.Bucket{}
	}
	return out, nil
}

// CreateBucket stores a bucket and its initial activities at positions
// 0..n-1 as one unit, then returns the bucket as read back from storage.
func (s *BucketService) CreateBucket(ctx context.Context, userID string, req model.CreateBucketRequest) (b *model.Bucket, err error) {
	const op = "create_bucket"
	defer s.observe(op, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if err := checkCapacity(len(req.Activities)); err != nil {
		return nil, err
	}
	acts := make([]model.Activity, len(req.Activities))
	for i, a := range req.Activities {
		if err := validateText(a.Text, i); err != nil {
			return nil, err
		}
		acts[i] = model.Activity{Text: a.Text, Description: normalizeDescription(a.Description), Position: i}
	}

	var bucketID string
	if tx, ok := s.store.(store.Transactor); ok {
		err = tx.WithinTx(ctx, func(st store.Store) error {
			created, err := st.Buckets().Create(ctx, &model.Bucket{UserID: userID, Name: req.Name})
			if err != nil {
				return err
			}
			bucketID = created.ID
			return st.Activities().InsertMany(ctx, created.ID, acts)
		})
		if err != nil {
			return nil, s.fail(op, err)
		}
	} else {
		created, err := s.store.Buckets().Create(ctx, &model.Bucket{UserID: userID, Name: req.Name})
		if err != nil {
			return nil, s.fail(op, err)
		}
		bucketID = created.ID
		if err := s.store.Activities().InsertMany(ctx, bucketID, acts); err != nil {
			s.compensateFailedCreate(ctx, userID, bucketID)
			return nil, s.fail(op, err)
		}
	}

	b, err = s.store.Buckets().GetByID(ctx, userID, bucketID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	s.publish(events.Event{Kind: events.BucketCreated, UserID: userID, BucketID: bucketID})
	return b, nil
}

// compensateFailedCreate removes a bucket row whose activities could not be
// stored. It runs detached from ctx cancellation and only logs its own
// failure; the caller surfaces the original error.
func (s *BucketService) compensateFailedCreate(ctx context.Context, userID, bucketID string) {
	observability.RecordCompensation()
	if err := s.store.Buckets().Delete(context.WithoutCancel(ctx), userID, bucketID); err != nil {
		s.log.Error().Stack().
			Err(pkgerrors.WithStack(err)).
			Str("bucket_id", bucketID).
			Msg("compensating delete failed; orphan bucket left behind")
		return
	}
	s.log.Warn().Str("bucket_id", bucketID).Msg("bucket removed after failed activity insert")
}

// GetBucket returns one bucket with activities ordered by position.
func (s *BucketService) GetBucket(ctx context.Context, userID, bucketID string) (b *model.Bucket, err error) {
	const op = "get_bucket"
	defer s.observe(op, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	b, err = s.store.Buckets().GetByID(ctx, userID, bucketID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return b, nil
}

// UpdateBucket applies a partial update. A supplied activity list replaces
// the current one entirely; it is ordered by each element's Position and
// stored as 0..n-1. Without transaction support a failure after the delete
// step leaves the bucket with no activities.
func (s *BucketService) UpdateBucket(ctx context.Context, userID, bucketID string, req model.UpdateBucketRequest) (b *model.Bucket, err error) {
	const op = "update_bucket"
	defer s.observe(op, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.Name == nil && req.Activities == nil {
		if b, err = s.store.Buckets().GetByID(ctx, userID, bucketID); err != nil {
			return nil, s.fail(op, err)
		}
		return b, nil
	}
	var replacement []model.Activity
	if req.Activities != nil {
		if replacement, err = orderActivities(req.Activities); err != nil {
			return nil, err
		}
	}

	err = s.write(ctx, func(st store.Store) error {
		current, err := st.Buckets().GetByID(ctx, userID, bucketID)
		if err != nil {
			return err
		}
		if req.Name != nil {
			if err := st.Buckets().Rename(ctx, userID, bucketID, *req.Name); err != nil {
				return err
			}
		}
		if req.Activities == nil {
			return nil
		}
		owned := make(map[string]bool, len(current.Activities))
		for _, a := range current.Activities {
			owned[a.ID] = true
		}
		for i := range replacement {
			// foreign or repeated ids would collide; those rows get fresh ones
			id := replacement[i].ID
			if !owned[id] {
				replacement[i].ID = ""
			}
			delete(owned, id)
		}
		if err := st.Activities().DeleteByBucket(ctx, bucketID); err != nil {
			return err
		}
		if err := st.Activities().InsertMany(ctx, bucketID, replacement); err != nil {
			return err
		}
		return st.Buckets().Touch(ctx, bucketID)
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	b, err = s.store.Buckets().GetByID(ctx, userID, bucketID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	s.publish(events.Event{Kind: events.BucketUpdated, UserID: userID, BucketID: bucketID})
	return b, nil
}

// DeleteBucket removes the bucket and all of its activities.
func (s *BucketService) DeleteBucket(ctx context.Context, userID, bucketID string) (err error) {
	const op = "delete_bucket"
	defer s.observe(op, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := s.write(ctx, func(st store.Store) error {
		return st.Buckets().Delete(ctx, userID, bucketID)
	}); err != nil {
		return s.fail(op, err)
	}
	s.publish(events.Event{Kind: events.BucketDeleted, UserID: userID, BucketID: bucketID})
	return nil
}

// AddActivity appends an activity after every existing one. The store
// assigns the position; a bucket at MaxActivities rejects the append.
func (s *BucketService) AddActivity(ctx context.Context, userID, bucketID, text string, description *string) (a *model.Activity, err error) {
	const op = "add_activity"
	defer s.observe(op, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := validateText(text, -1); err != nil {
		return nil, err
	}
	err = s.write(ctx, func(st store.Store) error {
		current, err := st.Buckets().GetByID(ctx, userID, bucketID)
		if err != nil {
			return err
		}
		if err := checkCapacity(len(current.Activities) + 1); err != nil {
			return err
		}
		created, err := st.Activities().Append(ctx, bucketID, text, normalizeDescription(description))
		if err != nil {
			return err
		}
		// a concurrent append may have landed since the read above
		if err := checkCapacity(created.Position + 1); err != nil {
			_ = st.Activities().Delete(ctx, created.ID)
			return err
		}
		a = created
		return st.Buckets().Touch(ctx, bucketID)
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	s.publish(events.Event{Kind: events.ActivityAdded, UserID: userID, BucketID: bucketID, ActivityID: a.ID})
	return a, nil
}

// RemoveActivity deletes one activity and renumbers the rest as 0..n-1.
func (s *BucketService) RemoveActivity(ctx context.Context, userID, activityID string) (err error) {
	const op = "remove_activity"
	defer s.observe(op, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return err
	}
	var bucketID string
	err = s.write(ctx, func(st store.Store) error {
		act, err := st.Activities().GetByID(ctx, userID, activityID)
		if err != nil {
			return err
		}
		bucketID = act.BucketID
		if err := st.Activities().Delete(ctx, activityID); err != nil {
			return err
		}
		rest, err := st.Activities().ListByBucket(ctx, bucketID)
		if err != nil {
			return err
		}
		ids := make([]string, len(rest))
		for i, r := range rest {
			ids[i] = r.ID
		}
		if err := st.Activities().Reposition(ctx, bucketID, ids); err != nil {
			return err
		}
		return st.Buckets().Touch(ctx, bucketID)
	})
	if err != nil {
		return s.fail(op, err)
	}
	s.publish(events.Event{Kind: events.ActivityRemoved, UserID: userID, BucketID: bucketID, ActivityID: activityID})
	return nil
}

// DrawActivity picks one activity of the bucket uniformly at random.
func (s *BucketService) DrawActivity(ctx context.Context, userID, bucketID string) (a model.Activity, err error) {
	const op = "draw_activity"
	defer s.observe(op, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return model.Activity{}, err
	}
	b, err := s.store.Buckets().GetByID(ctx, userID, bucketID)
	if err != nil {
		return model.Activity{}, s.fail(op, err)
	}
	return s.picker.SelectRandom(b.Activities)
}

// write runs fn in a transaction when the store has them, otherwise
// directly against the store.
func (s *BucketService) write(ctx context.Context, fn func(st store.Store) error) error {
	if tx, ok := s.store.(store.Transactor); ok {
		return tx.WithinTx(ctx, fn)
	}
	return fn(s.store)
}

func (s *BucketService) publish(evt events.Event) {
	if !s.events.Publish(evt) {
		s.log.Warn().Str("kind", string(evt.Kind)).Str("bucket_id", evt.BucketID).Msg("event dropped")
	}
}

// fail passes domain errors through and turns anything else into a
// PersistenceError, logging the cause.
func (s *BucketService) fail(op string, err error) error {
	if isDomainError(err) {
		return err
	}
	s.log.Error().Stack().
		Err(pkgerrors.WithStack(err)).
		Str("op", op).
		Msg("persistence failure")
	return &model.PersistenceError{Op: strings.ReplaceAll(op, "_", " "), Err: err}
}

func (s *BucketService) observe(op string, start time.Time, errp *error) {
	observability.ObserveOperation(op, outcomeOf(*errp), start)
}

func isDomainError(err error) bool {
	return errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrValidation) ||
		errors.Is(err, model.ErrUnauthenticated) ||
		errors.Is(err, model.ErrPersistence)
}

func outcomeOf(err error) observability.Outcome {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, model.ErrValidation), errors.Is(err, draw.ErrNoActivities):
		return observability.OutcomeInvalid
	case errors.Is(err, model.ErrNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, model.ErrUnauthenticated):
		return observability.OutcomeUnauth
	default:
		return observability.OutcomeUnavailable
	}
}

func requireUser(userID string) error {
	if userID == "" {
		return model.ErrUnauthenticated
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: bucket name is required", model.ErrValidation)
	}
	return nil
}

// validateText checks one activity label; i < 0 means a single activity.
func validateText(text string, i int) error {
	if strings.TrimSpace(text) != "" {
		return nil
	}
	if i < 0 {
		return fmt.Errorf("%w: activity text is required", model.ErrValidation)
	}
	return fmt.Errorf("%w: activity %d: text is required", model.ErrValidation, i)
}

func checkCapacity(n int) error {
	if n > model.MaxActivities {
		return fmt.Errorf("%w: a bucket holds at most %d activities", model.ErrValidation, model.MaxActivities)
	}
	return nil
}

func normalizeDescription(d *string) *string {
	if d == nil || *d == "" {
		return nil
	}
	v := *d
	return &v
}

// orderActivities validates a replacement list, sorts it by the supplied
// positions (stable on ties) and rewrites positions as 0..n-1.
func orderActivities(in []model.Activity) ([]model.Activity, error) {
	if err := checkCapacity(len(in)); err != nil {
		return nil, err
	}
	out := make([]model.Activity, len(in))
	for i, a := range in {
		if err := validateText(a.Text, i); err != nil {
			return nil, err
		}
		if a.Position < 0 {
			return nil, fmt.Errorf("%w: activity %d: position must be non-negative", model.ErrValidation, i)
		}
		out[i] = model.Activity{ID: a.ID, Text: a.Text, Description: normalizeDescription(a.Description), Position: a.Position}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	for i := range out {
		out[i].Position = i
	}
	return out, nil
}
