package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Andrew920528/vibe-30/internal/model"
	"github.com/Andrew920528/vibe-30/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db, q: db} }

// Store implements store.Store, store.Transactor and health.HealthPinger.
type Store struct {
	db *sql.DB
	q  querier
}

var (
	_ store.Store      = (*Store)(nil)
	_ store.Transactor = (*Store)(nil)
)

func (s *Store) Buckets() store.Buckets       { return &buckets{q: s.q} }
func (s *Store) Activities() store.Activities { return &activities{q: s.q} }

// WithinTx runs fn against a transaction-bound store. Nested calls reuse
// the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Bootstrap checks connectivity and applies the schema.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil
	}
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return EnsureSchema(ctx, db)
}

// --- Buckets ---
type buckets struct{ q querier }

func (b *buckets) Create(ctx context.Context, in *model.Bucket) (*model.Bucket, error) {
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	out := model.Bucket{ID: id, UserID: in.UserID, Name: in.Name, Activities: []model.Activity{}}
	row := b.q.QueryRowContext(ctx, `
        INSERT INTO buckets (id, user_id, name)
        VALUES ($1,$2,$3)
        RETURNING created_at, updated_at
    `, id, in.UserID, in.Name)
	if err := row.Scan(&out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert bucket: %w", err)
	}
	return &out, nil
}

func (b *buckets) GetByID(ctx context.Context, userID, bucketID string) (*model.Bucket, error) {
	out := model.Bucket{ID: bucketID, UserID: userID}
	row := b.q.QueryRowContext(ctx, `
        SELECT name, created_at, updated_at FROM buckets WHERE id=$1 AND user_id=$2
    `, bucketID, userID)
	if err := row.Scan(&out.Name, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("select bucket: %w", err)
	}
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
        WHERE user_id=$1 ORDER BY created_at DESC, id DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("select buckets: %w", err)
	}
	var out []*model.Bucket
	byID := map[string]*model.Bucket{}
	for rows.Next() {
		bk := &model.Bucket{UserID: userID, Activities: []model.Activity{}}
		if err := rows.Scan(&bk.ID, &bk.Name, &bk.CreatedAt, &bk.UpdatedAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, bk)
		byID[bk.ID] = bk
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// A transaction-bound connection serves one result set at a time.
	_ = rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	arows, err := b.q.QueryContext(ctx, `
        SELECT a.id, a.bucket_id, a.text, a.description, a.position
        FROM activities a JOIN buckets b ON b.id = a.bucket_id
        WHERE b.user_id=$1
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
        UPDATE buckets SET name=$1, updated_at=now() WHERE id=$2 AND user_id=$3
    `, name, bucketID, userID)
	if err != nil {
		return fmt.Errorf("rename bucket: %w", err)
	}
	return expectOne(res)
}

func (b *buckets) Touch(ctx context.Context, bucketID string) error {
	res, err := b.q.ExecContext(ctx, `UPDATE buckets SET updated_at=now() WHERE id=$1`, bucketID)
	if err != nil {
		return fmt.Errorf("touch bucket: %w", err)
	}
	return expectOne(res)
}

func (b *buckets) Delete(ctx context.Context, userID, bucketID string) error {
	if _, err := b.q.ExecContext(ctx, `
        DELETE FROM activities WHERE bucket_id IN (SELECT id FROM buckets WHERE id=$1 AND user_id=$2)
    `, bucketID, userID); err != nil {
		return fmt.Errorf("delete bucket activities: %w", err)
	}
	res, err := b.q.ExecContext(ctx, `DELETE FROM buckets WHERE id=$1 AND user_id=$2`, bucketID, userID)
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
	var sb strings.Builder
	args := make([]any, 0, len(acts)*5)
	sb.WriteString(`INSERT INTO activities (id, bucket_id, text, description, position) VALUES `)
	for i, act := range acts {
		if i > 0 {
			sb.WriteString(",")
		}
		n := i * 5
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5)
		id := act.ID
		if id == "" {
			id = uuid.New().String()
		}
		args = append(args, id, bucketID, act.Text, act.Description, act.Position)
	}
	if _, err := a.q.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert activities: %w", err)
	}
	return nil
}

// Append serializes on the bucket row: under READ COMMITTED two inserts
// computing MAX(position) side by side would both see the same maximum.
// Outside a transaction it opens one so the lock spans the insert.
func (a *activities) Append(ctx context.Context, bucketID, text string, description *string) (*model.Activity, error) {
	if db, ok := a.q.(*sql.DB); ok {
		tx, err := db.BeginTx(ctx, &sql.TxOptions{})
		if err != nil {
			return nil, fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		out, err := (&activities{q: tx}).Append(ctx, bucketID, text, description)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit append: %w", err)
		}
		return out, nil
	}

	// the insert below runs after the lock is granted, so its snapshot
	// includes any append that held the lock before us
	if _, err := a.q.ExecContext(ctx, `SELECT 1 FROM buckets WHERE id=$1 FOR UPDATE`, bucketID); err != nil {
		return nil, fmt.Errorf("lock bucket: %w", err)
	}
	out := model.Activity{ID: uuid.New().String(), BucketID: bucketID, Text: text, Description: description}
	row := a.q.QueryRowContext(ctx, `
        INSERT INTO activities (id, bucket_id, text, description, position)
        SELECT $1::text, $2::text, $3::text, $4::text, COALESCE(MAX(position) + 1, 0)
        FROM activities WHERE bucket_id = $2::text
        RETURNING position
    `, out.ID, bucketID, text, description)
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
        WHERE a.id=$1 AND b.user_id=$2
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
        WHERE bucket_id=$1 ORDER BY position ASC, id ASC
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
	res, err := a.q.ExecContext(ctx, `DELETE FROM activities WHERE id=$1`, activityID)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return expectOne(res)
}

func (a *activities) DeleteByBucket(ctx context.Context, bucketID string) error {
	if _, err := a.q.ExecContext(ctx, `DELETE FROM activities WHERE bucket_id=$1`, bucketID); err != nil {
		return fmt.Errorf("delete activities: %w", err)
	}
	return nil
}

func (a *activities) Reposition(ctx context.Context, bucketID string, orderedIDs []string) error {
	for i, id := range orderedIDs {
		if _, err := a.q.ExecContext(ctx, `
            UPDATE activities SET position=$1 WHERE id=$2 AND bucket_id=$3
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
