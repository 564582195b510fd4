package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Andrew920528/vibe-30/client"
	"github.com/Andrew920528/vibe-30/internal/timer"
)

func drawCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "draw BUCKET_ID",
		Short: "Pick a random activity from a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				a, err := c.DrawActivity(ctx, args[0])
				if errors.Is(err, client.ErrNoActivities) {
					return fmt.Errorf("bucket %s has no activities to draw from", args[0])
				}
				if err != nil {
					return err
				}
				printActivity(cmd.OutOrStdout(), *a)
				return nil
			})
		},
	}
}

func timerCmd(g *globals) *cobra.Command {
	var (
		duration time.Duration
		interval time.Duration
		extend   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "timer BUCKET_ID",
		Short: "Draw an activity and count down while you do it",
		Long: `Draw a random activity and run a countdown in the terminal.
While it runs, type a command and press enter:
  p   pause or resume
  +   add --extend to the countdown
  q   end the session early (Ctrl-C does the same)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				a, err := c.DrawActivity(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printActivity(out, *a)

				sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return runCountdown(sigCtx, cmd.InOrStdin(), out, timer.New(duration), countdownOptions{interval: interval, extend: extend})
			})
		},
	}
	cmd.Flags().DurationVarP(&duration, "duration", "d", timer.DefaultDuration, "Countdown length")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Refresh interval")
	cmd.Flags().DurationVar(&extend, "extend", timer.DefaultExtend, "Time added by the + command")
	return cmd
}

type countdownOptions struct {
	interval time.Duration
	extend   time.Duration
}

// runCountdown starts t and redraws a progress line until it completes or
// ctx ends, in which case the timer is ended early. Commands read line by
// line from in pause, extend or end the timer while it runs.
func runCountdown(ctx context.Context, in io.Reader, out io.Writer, t *timer.Timer, opts countdownOptions) error {
	if opts.extend <= 0 {
		opts.extend = timer.DefaultExtend
	}
	if err := t.Start(); err != nil {
		return err
	}
	var quit atomic.Bool
	if in != nil {
		go readControls(in, t, opts.extend, &quit)
	}

	err := t.Run(ctx, opts.interval, func(s timer.Snapshot) {
		_, _ = fmt.Fprintf(out, "\r%s", renderSnapshot(s, 30))
	})
	_, _ = fmt.Fprintln(out)
	if errors.Is(err, context.Canceled) {
		_ = t.End()
		quit.Store(true)
	} else if err != nil {
		return err
	}
	if quit.Load() {
		_, _ = fmt.Fprintln(out, color.New(color.FgYellow).Sprint("ended early"))
		return nil
	}
	_, _ = fmt.Fprintln(out, color.New(color.FgHiGreen).Sprint("time's up!"))
	return nil
}

// readControls applies one command per line until in is exhausted or the
// timer completes. Commands that do not fit the timer's state are ignored.
func readControls(in io.Reader, t *timer.Timer, extend time.Duration, quit *atomic.Bool) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		switch strings.TrimSpace(sc.Text()) {
		case "p":
			if t.State() == timer.Paused {
				_ = t.Resume()
			} else {
				_ = t.Pause()
			}
		case "+":
			_ = t.Extend(extend)
		case "q":
			// mark first so the run loop never reports a normal finish
			quit.Store(true)
			_ = t.End()
		}
		if t.State() == timer.Completed {
			return
		}
	}
}

// renderSnapshot draws "[#####-----]  12:34 left" with width bar cells.
func renderSnapshot(s timer.Snapshot, width int) string {
	filled := int(s.Progress * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	line := fmt.Sprintf("[%s] %s left", bar, formatRemaining(s.Remaining))
	if s.State == timer.Paused {
		line += " (paused)"
	}
	return line
}

func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	m := int(d / time.Minute)
	sec := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%02d:%02d", m, sec)
}
