// Package client is the Go SDK for the vibe30 bucket API.
//
// Reads go straight to the server. Writes that touch an existing bucket are
// queued per bucket id on a sharded FIFO executor, so a single client never
// interleaves its own writes to one bucket.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	clierrors "github.com/Andrew920528/vibe-30/client/internal/errors"
	"github.com/Andrew920528/vibe-30/client/internal/shardqueue"
)

type Client struct {
	baseURL string
	rest    *resty.Client
	exec    *shardqueue.ShardExecutor

	closedOnce uint32
}

// New constructs a Client for baseURL authenticating with the bearer token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	if token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	sq, err := shardqueue.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("shard queue config: %w", err)
	}
	o := options{timeout: 30 * time.Second, queue: sq}
	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	transport := o.transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if o.debug {
		transport = &debugTransport{base: transport}
	}

	rest := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(o.timeout).
		SetTransport(transport)

	return &Client{
		baseURL: baseURL,
		rest:    rest,
		exec:    shardqueue.NewShardExecutor(o.queue),
	}, nil
}

// Close drains queued writes and stops the executor. Safe to call multiple times.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closedOnce, 0, 1) {
		return nil
	}
	c.exec.Stop()
	return nil
}

// AwaitConsistency blocks until every write queued for bucketID so far has run.
func (c *Client) AwaitConsistency(ctx context.Context, bucketID string) error {
	return c.exec.Barrier(ctx, bucketID)
}

// --------------------------------------------------------------------
// Bucket operations
// --------------------------------------------------------------------

// ListBuckets returns the caller's buckets newest first.
func (c *Client) ListBuckets(ctx context.Context) ([]Bucket, error) {
	var out struct {
		Buckets []Bucket `json:"buckets"`
		Count   int      `json:"count"`
	}
	if err := c.call(ctx, "list_buckets", http.MethodGet, "/api/buckets", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Buckets, nil
}

func (c *Client) GetBucket(ctx context.Context, bucketID string) (*Bucket, error) {
	var b Bucket
	if err := c.call(ctx, "get_bucket", http.MethodGet, bucketPath(bucketID), nil, &b, http.StatusOK); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBucket runs immediately; a new bucket has no queue to join.
func (c *Client) CreateBucket(ctx context.Context, req CreateBucketRequest) (*Bucket, error) {
	var b Bucket
	if err := c.call(ctx, "create_bucket", http.MethodPost, "/api/buckets", req, &b, http.StatusCreated); err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBucket applies a partial update. See UpdateBucketRequest for the
// meaning of nil fields.
func (c *Client) UpdateBucket(ctx context.Context, bucketID string, req UpdateBucketRequest) (*Bucket, error) {
	var b Bucket
	err := c.queued(ctx, bucketID, "update_bucket", func(ctx context.Context) error {
		return c.call(ctx, "update_bucket", http.MethodPatch, bucketPath(bucketID), req, &b, http.StatusOK)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) RenameBucket(ctx context.Context, bucketID, name string) (*Bucket, error) {
	return c.UpdateBucket(ctx, bucketID, UpdateBucketRequest{Name: &name})
}

// ReorderActivities moves the listed activities to the front in the given
// order; activities not listed keep their relative order after them.
func (c *Client) ReorderActivities(ctx context.Context, bucketID string, orderedIDs []string) (*Bucket, error) {
	var b Bucket
	err := c.queued(ctx, bucketID, "reorder_activities", func(ctx context.Context) error {
		cur, err := c.GetBucket(ctx, bucketID)
		if err != nil {
			return err
		}
		acts, err := reorder(cur.Activities, orderedIDs)
		if err != nil {
			return err
		}
		return c.call(ctx, "reorder_activities", http.MethodPatch, bucketPath(bucketID),
			UpdateBucketRequest{Activities: acts}, &b, http.StatusOK)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) DeleteBucket(ctx context.Context, bucketID string) error {
	return c.queued(ctx, bucketID, "delete_bucket", func(ctx context.Context) error {
		return c.call(ctx, "delete_bucket", http.MethodDelete, bucketPath(bucketID), nil, nil, http.StatusNoContent)
	})
}

// --------------------------------------------------------------------
// Activity operations
// --------------------------------------------------------------------

// AddActivity appends an activity at the end of the bucket.
func (c *Client) AddActivity(ctx context.Context, bucketID, text string, description *string) (*Activity, error) {
	var a Activity
	body := NewActivity{Text: text, Description: description}
	err := c.queued(ctx, bucketID, "add_activity", func(ctx context.Context) error {
		return c.call(ctx, "add_activity", http.MethodPost, bucketPath(bucketID)+"/activities", body, &a, http.StatusCreated)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RemoveActivity deletes an activity. bucketID only orders the call behind
// other writes to the same bucket; pass "" when it is unknown.
func (c *Client) RemoveActivity(ctx context.Context, bucketID, activityID string) error {
	key := bucketID
	if key == "" {
		key = activityID
	}
	return c.queued(ctx, key, "remove_activity", func(ctx context.Context) error {
		return c.call(ctx, "remove_activity", http.MethodDelete, "/api/activities/"+url.PathEscape(activityID), nil, nil, http.StatusNoContent)
	})
}

// DrawActivity picks one activity at random after queued writes to the
// bucket have landed. An empty bucket fails with ErrNoActivities.
func (c *Client) DrawActivity(ctx context.Context, bucketID string) (*Activity, error) {
	if err := c.AwaitConsistency(ctx, bucketID); err != nil {
		return nil, err
	}
	var a Activity
	if err := c.call(ctx, "draw_activity", http.MethodPost, bucketPath(bucketID)+"/draw", nil, &a, http.StatusOK); err != nil {
		return nil, err
	}
	return &a, nil
}

// --------------------------------------------------------------------
// internals
// --------------------------------------------------------------------

func (c *Client) queued(ctx context.Context, key, op string, fn func(context.Context) error) error {
	err := c.exec.Do(ctx, key, shardqueue.JobFunc(fn))
	if err != nil {
		writesFailedTotal.WithLabelValues(op).Inc()
	}
	return err
}

// call performs one request and decodes a JSON body into out when set.
func (c *Client) call(ctx context.Context, op, method, path string, body, out interface{}, want int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	r := c.rest.R().SetContext(ctx)
	if body != nil {
		r.SetBody(body)
	}
	resp, err := r.Execute(method, path)
	requestSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return clierrors.NewNetworkError(op, err)
	}
	if resp.StatusCode() != want {
		return clierrors.NewHTTPError(resp.StatusCode(), resp.Body(), op)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func bucketPath(bucketID string) string {
	return "/api/buckets/" + url.PathEscape(bucketID)
}

// reorder puts the activities named by ids first, in that order, and assigns
// dense positions.
func reorder(acts []Activity, ids []string) ([]Activity, error) {
	byID := make(map[string]Activity, len(acts))
	for _, a := range acts {
		byID[a.ID] = a
	}
	out := make([]Activity, 0, len(acts))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("activity %s is not in the bucket: %w", id, ErrNotFound)
		}
		if seen[id] {
			return nil, fmt.Errorf("activity %s listed twice: %w", id, ErrValidation)
		}
		seen[id] = true
		out = append(out, a)
	}
	for _, a := range acts {
		if !seen[a.ID] {
			out = append(out, a)
		}
	}
	for i := range out {
		out[i].Position = i
	}
	return out, nil
}
