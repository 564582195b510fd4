package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Andrew920528/vibe-30/internal/events"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS event_outbox (
    id              BIGSERIAL PRIMARY KEY,
    kind            TEXT        NOT NULL,
    bucket_id       TEXT        NOT NULL,
    payload         JSONB       NOT NULL,
    status          TEXT        NOT NULL DEFAULT 'pending',
    attempt_count   INT         NOT NULL DEFAULT 0,
    next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    create_time     TIMESTAMPTZ NOT NULL DEFAULT now(),
    update_time     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS event_outbox_ready_idx ON event_outbox (status, next_attempt_at, id);
CREATE INDEX IF NOT EXISTS event_outbox_bucket_idx ON event_outbox (bucket_id, status, id);
`

const (
	insertSQL = `INSERT INTO event_outbox (kind, bucket_id, payload) VALUES ($1, $2, $3)`

	// Only the oldest pending row of each bucket is eligible. A row that is
	// backing off, or leased by another worker, holds back everything after
	// it for the same bucket.
	selectReadyRowsSQL = `
SELECT e.id, e.payload, e.attempt_count
FROM event_outbox e
WHERE e.status = 'pending' AND e.next_attempt_at <= now()
  AND NOT EXISTS (
    SELECT 1 FROM event_outbox p
    WHERE p.bucket_id = e.bucket_id AND p.status = 'pending' AND p.id < e.id)
ORDER BY e.id ASC
FOR UPDATE OF e SKIP LOCKED
LIMIT $1`

	markDoneSQL = `UPDATE event_outbox SET status='done', update_time=now() WHERE id=$1`

	// a payload that cannot be decoded never will be; parking it keeps its
	// bucket moving
	markDeadSQL = `UPDATE event_outbox SET status='dead', update_time=now() WHERE id=$1`

	// exponential backoff capped at five minutes
	markFailedSQL = `
UPDATE event_outbox
SET attempt_count = attempt_count + 1,
    next_attempt_at = now() + make_interval(secs => LEAST(POWER(2, attempt_count+1), 300)),
    update_time = now()
WHERE id=$1`

	pendingCountSQL = `SELECT COUNT(*) FROM event_outbox WHERE status = 'pending'`
)

// EnsureSchema creates the outbox table. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("outbox schema: %w", err)
	}
	return nil
}

// PGQueue is a Queue on a Postgres table. Concurrent workers never lease
// the same row.
type PGQueue struct {
	db *sql.DB
}

var _ Queue = (*PGQueue)(nil)

func NewPGQueue(db *sql.DB) *PGQueue { return &PGQueue{db: db} }

func (q *PGQueue) Enqueue(ctx context.Context, evt events.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, insertSQL, string(evt.Kind), evt.BucketID, payload); err != nil {
		return fmt.Errorf("enqueue %s: %w", evt.Kind, err)
	}
	return nil
}

func (q *PGQueue) Lease(ctx context.Context, limit int) (Lease, error) {
	tx, err := q.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	l := &pgLease{tx: tx}
	rows, err := tx.QueryContext(ctx, selectReadyRowsSQL, limit)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	defer rows.Close()

	var poisoned []int64
	for rows.Next() {
		var r Row
		var raw []byte
		if err := rows.Scan(&r.ID, &raw, &r.Attempts); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := json.Unmarshal(raw, &r.Event); err != nil {
			poisoned = append(poisoned, r.ID)
			continue
		}
		l.rows = append(l.rows, r)
	}
	if err := rows.Err(); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	_ = rows.Close()
	for _, id := range poisoned {
		if _, err := tx.ExecContext(ctx, markDeadSQL, id); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
	}
	return l, nil
}

// Pending counts rows not yet delivered.
func (q *PGQueue) Pending(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, pendingCountSQL).Scan(&n)
	return n, err
}

type pgLease struct {
	tx   *sql.Tx
	rows []Row
}

func (l *pgLease) Rows() []Row { return l.rows }

func (l *pgLease) Done(ctx context.Context, id int64) error {
	_, err := l.tx.ExecContext(ctx, markDoneSQL, id)
	return err
}

func (l *pgLease) Failed(ctx context.Context, id int64) error {
	_, err := l.tx.ExecContext(ctx, markFailedSQL, id)
	return err
}

func (l *pgLease) Commit() error   { return l.tx.Commit() }
func (l *pgLease) Rollback() error { return l.tx.Rollback() }
