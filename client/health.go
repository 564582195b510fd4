package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// Health fetches the service health report. It does not require a valid token.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var h HealthStatus
	if err := c.call(ctx, "health", http.MethodGet, "/api/health", nil, &h, http.StatusOK); err != nil {
		return nil, err
	}
	return &h, nil
}

// WaitHealthy polls the health endpoint with exponential backoff until the
// service reports healthy, ctx ends, or maxWait elapses.
func (c *Client) WaitHealthy(ctx context.Context, maxWait time.Duration) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 5 * time.Second
	exp.MaxElapsedTime = maxWait

	return backoff.Retry(func() error {
		h, err := c.Health(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if !h.Healthy() {
			return fmt.Errorf("service unhealthy: down=%v", h.Down)
		}
		return nil
	}, backoff.WithContext(exp, ctx))
}
