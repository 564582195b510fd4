package bucketservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andrew920528/vibe-30/internal/config"
)

func TestCalculateStartupHealthTimeout(t *testing.T) {
	assert.Equal(t, 60, calculateStartupHealthTimeout(5))
	assert.Equal(t, 60, calculateStartupHealthTimeout(30))
	assert.Equal(t, 90, calculateStartupHealthTimeout(45))
}

type flipHealth struct{ after time.Time }

func (f flipHealth) IsHealthy() bool { return time.Now().After(f.after) }
func (f flipHealth) Down() []string {
	if f.IsHealthy() {
		return nil
	}
	return []string{"store"}
}

func TestWaitUntilHealthy(t *testing.T) {
	cfg := config.NewForTesting("unused.db")

	err := waitUntilHealthy(context.Background(), cfg, flipHealth{after: time.Now().Add(300 * time.Millisecond)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = waitUntilHealthy(ctx, cfg, flipHealth{after: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, context.Canceled)
}
