// Package timer implements the activity countdown. Remaining time is derived
// from the clock on every sample rather than decremented per tick, so tick
// jitter never accumulates.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultDuration = 30 * time.Minute
	DefaultExtend   = 5 * time.Minute
)

var ErrInvalidTransition = errors.New("invalid timer transition")

type State int

const (
	Idle State = iota
	Running
	Paused
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is one sample of the timer.
type Snapshot struct {
	State     State
	Total     time.Duration
	Remaining time.Duration
	Progress  float64
}

type Option func(*Timer)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

// Timer is safe for concurrent use.
type Timer struct {
	mu  sync.Mutex
	now func() time.Time

	initial time.Duration
	total   time.Duration
	state   State

	startedAt time.Time
	pausedAt  time.Time
	paused    time.Duration
}

// New returns an idle timer. A non-positive d falls back to DefaultDuration.
func New(d time.Duration, opts ...Option) *Timer {
	if d <= 0 {
		d = DefaultDuration
	}
	t := &Timer{now: time.Now, initial: d, total: d}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Timer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Idle {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, t.state)
	}
	t.startedAt = t.now()
	t.paused = 0
	t.state = Running
	return nil
}

func (t *Timer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.advance(now)
	if t.state != Running {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, t.state)
	}
	t.pausedAt = now
	t.state = Paused
	return nil
}

func (t *Timer) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Paused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, t.state)
	}
	t.paused += t.now().Sub(t.pausedAt)
	t.state = Running
	return nil
}

// End completes the timer early from Running or Paused.
func (t *Timer) End() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance(t.now())
	if t.state != Running && t.state != Paused {
		return fmt.Errorf("%w: end from %s", ErrInvalidTransition, t.state)
	}
	t.state = Completed
	return nil
}

// Extend adds d to the total without touching elapsed progress.
func (t *Timer) Extend(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("extend by %s: must be positive", d)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance(t.now())
	if t.state == Completed {
		return fmt.Errorf("%w: extend from %s", ErrInvalidTransition, t.state)
	}
	t.total += d
	return nil
}

// Reset returns to Idle with the original duration.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Idle
	t.total = t.initial
	t.paused = 0
	t.startedAt, t.pausedAt = time.Time{}, time.Time{}
}

func (t *Timer) State() State { return t.Snapshot().State }

func (t *Timer) Remaining() time.Duration { return t.Snapshot().Remaining }

// Progress is the completed fraction in [0, 1].
func (t *Timer) Progress() float64 { return t.Snapshot().Progress }

func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.advance(now)

	s := Snapshot{State: t.state, Total: t.total}
	if t.state == Completed {
		s.Progress = 1
		return s
	}
	elapsed := t.elapsed(now)
	s.Remaining = t.total - elapsed
	s.Progress = float64(elapsed) / float64(t.total)
	return s
}

// Run samples the timer every interval and hands each sample to onTick.
// It returns nil once the timer completes, or ctx.Err() when cancelled.
func (t *Timer) Run(ctx context.Context, interval time.Duration, onTick func(Snapshot)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s := t.Snapshot()
		if onTick != nil {
			onTick(s)
		}
		if s.State == Completed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// advance completes a running timer whose time is up. Caller holds mu.
func (t *Timer) advance(now time.Time) {
	if t.state == Running && t.elapsed(now) >= t.total {
		t.state = Completed
	}
}

// elapsed excludes paused time. Caller holds mu.
func (t *Timer) elapsed(now time.Time) time.Duration {
	switch t.state {
	case Running:
		return now.Sub(t.startedAt) - t.paused
	case Paused:
		return t.pausedAt.Sub(t.startedAt) - t.paused
	default:
		return 0
	}
}
