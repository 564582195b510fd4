package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Andrew920528/vibe-30/internal/model"
	"github.com/Andrew920528/vibe-30/internal/store"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Store and store.Transactor on an embedded database.
type Store struct {
	db  *sql.DB
	q   querier
	now func() time.Time
}

var (
	_ store.Store      = (*Store)(nil)
	_ store.Transactor = (*Store)(nil)
)

// NewWithDB wraps an open database. The schema must already exist.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, q: db, now: func() time.Time { return time.Now().UTC() }}
}

// New opens path, applies the schema and returns a ready store.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

func (s *Store) Buckets() store.Buckets       { return &buckets{q: s.q, now: s.now} }
func (s *Store) Activities() store.Activities { return &activities{q: s.q} }

// DB exposes the handle for shutdown.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{db: s.db, q: tx, now: s.now}); err != nil {
		return err
	}
	return tx.Commit()
}

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Buckets ---
type buckets struct {
	q   querier
	now func() time.Time
}

func (b *buckets) Create(ctx context.Context, in *model.Bucket) (*model.Bucket, error) {
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	ts := b.now()
	if _, err := b.q.ExecContext(ctx, `
        INSERT INTO buckets (id, user_id, name, created_at, updated_at) VALUES (?,?,?,?,?)
    `, id, in.UserID, in.Name, ts.UnixNano(), ts.UnixNano()); err != nil {
		return nil, fmt.Errorf("insert bucket: %w", err)
	}
	return &model.Bucket{
		ID:         id,
		UserID:     in.UserID,
		Name:       in.Name,
		Activities: []model.Activity{},
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}, nil
}

func (b *buckets) GetByID(ctx context.Context, userID, bucketID string) (*model.Bucket, error) {
	out := model.Bucket{ID: bucketID, UserID: userID}
	var created, updated int64
	row := b.q.QueryRowContext(ctx, `
        SELECT name, created_at, updated_at FROM buckets WHERE id=? AND user_id=?
    `, bucketID, userID)
	if err := row.Scan(&out.Name, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("select bucket: %w", err)
	}
	out.CreatedAt, out.UpdatedAt = fromNanos(created), fromNanos(updated)

	acts, err := (&activities{q: b.q}).ListByBucket(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	out.Activities = acts
	return &out, nil
}

func (b *buckets) List(ctx context.Context, userID string) ([]*model.Bucket, error) {
	rows, err := b.q.QueryContext(ctx, `
        SELECT id, name, created_at, updated_at FROM buckets
        WHERE user_id=? ORDER BY created_at DESC, rowid DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("select buckets: %w", err)
	}
	var out []*model.Bucket
	byID := map[string]*model.Bucket{}
	for rows.Next() {
		var created, updated int64
		bk := &model.Bucket{UserID: userID, Activities: []model.Activity{}}
		if err := rows.Scan(&bk.ID, &bk.Name, &created, &updated); err != nil {
			_ = rows.Close()
			return nil, err
		}
		bk.CreatedAt, bk.UpdatedAt = fromNanos(created), fromNanos(updated)
		out = append(out, bk)
		byID[bk.ID] = bk
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// Close before the next query: the pool holds a single connection.
	_ = rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	arows, err := b.q.QueryContext(ctx, `
        SELECT a.id, a.bucket_id, a.text, a.description, a.position
        FROM activities a JOIN buckets b ON b.id = a.bucket_id
        WHERE b.user_id=?
        ORDER BY a.bucket_id, a.position, a.id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("select activities: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var a model.Activity
		if err := arows.Scan(&a.ID, &a.BucketID, &a.Text, &a.Description, &a.Position); err != nil {
			return nil, err
		}
		if bk, ok := byID[a.BucketID]; ok {
			bk.Activities = append(bk.Activities, a)
		}
	}
	return out, arows.Err()
}

func (b *buckets) Rename(ctx context.Context, userID, bucketID, name string) error {
	res, err := b.q.ExecContext(ctx, `
        UPDATE buckets SET name=?, updated_at=? WHERE id=? AND user_id=?
    `, name, b.now().UnixNano(), bucketID, userID)
	if err != nil {
		return fmt.Errorf("rename bucket: %w", err)
	}
	return expectOne(res)
}

func (b *buckets) Touch(ctx context.Context, bucketID string) error {
	res, err := b.q.ExecContext(ctx, `UPDATE buckets SET updated_at=? WHERE id=?`, b.now().UnixNano(), bucketID)
	if err != nil {
		return fmt.Errorf("touch bucket: %w", err)
	}
	return expectOne(res)
}

func (b *buckets) Delete(ctx context.Context, userID, bucketID string) error {
	if _, err := b.q.ExecContext(ctx, `
        DELETE FROM activities WHERE bucket_id IN (SELECT id FROM buckets WHERE id=? AND user_id=?)
    `, bucketID, userID); err != nil {
		return fmt.Errorf("delete bucket activities: %w", err)
	}
	res, err := b.q.ExecContext(ctx, `DELETE FROM buckets WHERE id=? AND user_id=?`, bucketID, userID)
	if err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}
	return expectOne(res)
}

// --- Activities ---
type activities struct{ q querier }

func (a *activities) InsertMany(ctx context.Context, bucketID string, acts []model.Activity) error {
	if len(acts) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(acts))
	args := make([]any, 0, len(acts)*5)
	for _, act := range acts {
		id := act.ID
		if id == "" {
			id = uuid.New().String()
		}
		placeholders = append(placeholders, "(?,?,?,?,?)")
		args = append(args, id, bucketID, act.Text, act.Description, act.Position)
	}
	q := `INSERT INTO activities (id, bucket_id, text, description, position) VALUES ` + strings.Join(placeholders, ",")
	if _, err := a.q.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert activities: %w", err)
	}
	return nil
}

func (a *activities) Append(ctx context.Context, bucketID, text string, description *string) (*model.Activity, error) {
	out := model.Activity{ID: uuid.New().String(), BucketID: bucketID, Text: text, Description: description}
	row := a.q.QueryRowContext(ctx, `
        INSERT INTO activities (id, bucket_id, text, description, position)
        SELECT ?, ?, ?, ?, COALESCE(MAX(position) + 1, 0) FROM activities WHERE bucket_id = ?
        RETURNING position
    `, out.ID, bucketID, text, description, bucketID)
	if err := row.Scan(&out.Position); err != nil {
		return nil, fmt.Errorf("append activity: %w", err)
	}
	return &out, nil
}

func (a *activities) GetByID(ctx context.Context, userID, activityID string) (*model.Activity, error) {
	var out model.Activity
	row := a.q.QueryRowContext(ctx, `
        SELECT a.id, a.bucket_id, a.text, a.description, a.position
        FROM activities a JOIN buckets b ON b.id = a.bucket_id
        WHERE a.id=? AND b.user_id=?
    `, activityID, userID)
	if err := row.Scan(&out.ID, &out.BucketID, &out.Text, &out.Description, &out.Position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("select activity: %w", err)
	}
	return &out, nil
}

func (a *activities) ListByBucket(ctx context.Context, bucketID string) ([]model.Activity, error) {
	rows, err := a.q.QueryContext(ctx, `
        SELECT id, bucket_id, text, description, position FROM activities
        WHERE bucket_id=? ORDER BY position ASC, id ASC
    `, bucketID)
	if err != nil {
		return nil, fmt.Errorf("select activities: %w", err)
	}
	defer rows.Close()
	out := []model.Activity{}
	for rows.Next() {
		var act model.Activity
		if err := rows.Scan(&act.ID, &act.BucketID, &act.Text, &act.Description, &act.Position); err != nil {
			return nil, err
		}
		out = append(out, act)
	}
	return out, rows.Err()
}

func (a *activities) Delete(ctx context.Context, activityID string) error {
	res, err := a.q.ExecContext(ctx, `DELETE FROM activities WHERE id=?`, activityID)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return expectOne(res)
}

func (a *activities) DeleteByBucket(ctx context.Context, bucketID string) error {
	if _, err := a.q.ExecContext(ctx, `DELETE FROM activities WHERE bucket_id=?`, bucketID); err != nil {
		return fmt.Errorf("delete activities: %w", err)
	}
	return nil
}

func (a *activities) Reposition(ctx context.Context, bucketID string, orderedIDs []string) error {
	for i, id := range orderedIDs {
		if _, err := a.q.ExecContext(ctx, `
            UPDATE activities SET position=? WHERE id=? AND bucket_id=?
        `, i, id, bucketID); err != nil {
			return fmt.Errorf("reposition activity: %w", err)
		}
	}
	return nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }
