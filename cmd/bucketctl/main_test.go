package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andrew920528/vibe-30/internal/api"
	"github.com/Andrew920528/vibe-30/internal/auth"
	"github.com/Andrew920528/vibe-30/internal/events"
	"github.com/Andrew920528/vibe-30/internal/services"
	"github.com/Andrew920528/vibe-30/internal/store/sqlite"
	"github.com/Andrew920528/vibe-30/internal/timer"
)

type alwaysHealthy struct{}

func (alwaysHealthy) IsHealthy() bool { return true }
func (alwaysHealthy) Down() []string  { return nil }

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "ctl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.DB().Close() })
	srv := httptest.NewServer(api.NewRouter(api.RouterDeps{
		Buckets: services.NewBucketService(st, events.Nop{}, zerolog.Nop()),
		Auth:    auth.NewDevAuthenticator(),
		Health:  alwaysHealthy{},
		Log:     zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--api", srv.URL, "--token", auth.LocalDevAPIKey}, args...))
	err := root.Execute()
	return out.String(), err
}

var uuidRe = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func TestBucketctlFlow(t *testing.T) {
	srv := newServer(t)

	out, err := run(t, srv, "buckets", "create", "Rainy day", "-A", "Puzzle", "-A", "Movie")
	require.NoError(t, err)
	assert.Contains(t, out, "Rainy day")
	assert.Contains(t, out, "1. Puzzle")
	assert.Contains(t, out, "2. Movie")
	bucketID := uuidRe.FindString(out)
	require.NotEmpty(t, bucketID)

	out, err = run(t, srv, "activities", "add", bucketID, "Bake", "-d", "sourdough")
	require.NoError(t, err)
	assert.Contains(t, out, "Bake")
	assert.Contains(t, out, "sourdough")
	bakeID := uuidRe.FindString(out)

	out, err = run(t, srv, "activities", "reorder", bucketID, bakeID)
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "Bake"), strings.Index(out, "Puzzle"))

	out, err = run(t, srv, "buckets", "rename", bucketID, "Indoor")
	require.NoError(t, err)
	assert.Contains(t, out, "Indoor")

	out, err = run(t, srv, "buckets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Indoor (3)")

	out, err = run(t, srv, "draw", bucketID)
	require.NoError(t, err)
	assert.Regexp(t, "Bake|Puzzle|Movie", out)

	_, err = run(t, srv, "activities", "remove", bakeID, "--bucket", bucketID)
	require.NoError(t, err)

	out, err = run(t, srv, "buckets", "get", bucketID)
	require.NoError(t, err)
	assert.NotContains(t, out, "Bake")

	_, err = run(t, srv, "buckets", "delete", bucketID)
	require.NoError(t, err)
	_, err = run(t, srv, "buckets", "get", bucketID)
	assert.Error(t, err)
}

func TestDrawEmptyBucket(t *testing.T) {
	srv := newServer(t)
	out, err := run(t, srv, "buckets", "create", "Nothing")
	require.NoError(t, err)
	_, err = run(t, srv, "draw", uuidRe.FindString(out))
	assert.ErrorContains(t, err, "no activities")
}

func TestCheckCommand(t *testing.T) {
	srv := newServer(t)
	out, err := run(t, srv, "buckets", "create", "Errands", "-A", "Groceries", "-A", "Bank")
	require.NoError(t, err)
	bucketID := uuidRe.FindString(out)

	out, err = run(t, srv, "check", "--probe")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	out, err = run(t, srv, "check", bucketID)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestHealthCommand(t *testing.T) {
	srv := newServer(t)
	out, err := run(t, srv, "health", "--wait", "2s")
	require.NoError(t, err)
	assert.Equal(t, "healthy\n", out)
}

func TestTokenCommand(t *testing.T) {
	srv := newServer(t)
	out, err := run(t, srv, "token", "alice", "--secret", "s3cret")
	require.NoError(t, err)

	a := auth.NewJWTAuthenticator(auth.JWTConfig{Secret: "s3cret", Issuer: "vibe30"})
	p, err := a.Authenticate(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)

	_, err = run(t, srv, "token", "alice", "--secret", "")
	assert.Error(t, err)
}

func TestRenderSnapshot(t *testing.T) {
	s := timer.Snapshot{State: timer.Running, Total: 10 * time.Minute, Remaining: 5*time.Minute + 4*time.Second, Progress: 0.5}
	assert.Equal(t, "[#####-----] 05:04 left", renderSnapshot(s, 10))

	done := timer.Snapshot{State: timer.Completed, Remaining: 0, Progress: 1}
	assert.Equal(t, "[##########] 00:00 left", renderSnapshot(done, 10))
}

func TestRunCountdownCompletes(t *testing.T) {
	var out bytes.Buffer
	color.NoColor = true
	err := runCountdown(context.Background(), nil, &out, timer.New(30*time.Millisecond), countdownOptions{interval: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "time's up!")
}

func TestRunCountdownControls(t *testing.T) {
	color.NoColor = true
	in, w := io.Pipe()
	defer in.Close()
	var out syncBuffer
	tm := timer.New(time.Hour)

	done := make(chan error, 1)
	go func() {
		done <- runCountdown(context.Background(), in, &out, tm, countdownOptions{interval: time.Millisecond, extend: 10 * time.Minute})
	}()
	send := func(line string) {
		_, err := io.WriteString(w, line+"\n")
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return tm.State() == timer.Running }, time.Second, time.Millisecond)

	send("p")
	require.Eventually(t, func() bool { return tm.State() == timer.Paused }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "(paused)") }, time.Second, time.Millisecond)

	send("+")
	require.Eventually(t, func() bool { return tm.Snapshot().Total == 70*time.Minute }, time.Second, time.Millisecond)

	send("p")
	require.Eventually(t, func() bool { return tm.State() == timer.Running }, time.Second, time.Millisecond)

	send("q")
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("countdown did not stop")
	}
	assert.Equal(t, timer.Completed, tm.State())
	assert.Contains(t, out.String(), "ended early")
	assert.NotContains(t, out.String(), "time's up!")
}

// syncBuffer lets the test read output while the countdown writes it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunCountdownCanceled(t *testing.T) {
	var out bytes.Buffer
	color.NoColor = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tm := timer.New(time.Hour)
	require.NoError(t, runCountdown(ctx, nil, &out, tm, countdownOptions{interval: time.Millisecond}))
	assert.Contains(t, out.String(), "ended early")
	assert.Equal(t, timer.Completed, tm.State())
}
