package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/Andrew920528/vibe-30/client"
)

var (
	idColor    = color.New(color.FgHiBlack)
	nameColor  = color.New(color.FgHiCyan, color.Bold)
	countColor = color.New(color.FgYellow)
)

func printBucketList(w io.Writer, bs []client.Bucket) {
	if len(bs) == 0 {
		_, _ = fmt.Fprintln(w, "no buckets yet")
		return
	}
	for _, b := range bs {
		_, _ = fmt.Fprintf(w, "%s  %s %s\n",
			idColor.Sprint(b.ID),
			nameColor.Sprint(b.Name),
			countColor.Sprintf("(%d)", len(b.Activities)))
	}
}

func printBucket(w io.Writer, b *client.Bucket) {
	_, _ = fmt.Fprintf(w, "%s  %s\n", nameColor.Sprint(b.Name), idColor.Sprint(b.ID))
	if len(b.Activities) == 0 {
		_, _ = fmt.Fprintln(w, "  (empty)")
		return
	}
	for _, a := range b.Activities {
		_, _ = fmt.Fprintf(w, "  %2d. %s  %s\n", a.Position+1, a.Text, idColor.Sprint(a.ID))
		if a.Description != nil {
			_, _ = fmt.Fprintf(w, "      %s\n", *a.Description)
		}
	}
}

func printActivity(w io.Writer, a client.Activity) {
	_, _ = fmt.Fprintf(w, "%s  %s\n", color.New(color.FgHiGreen, color.Bold).Sprint(a.Text), idColor.Sprint(a.ID))
	if a.Description != nil {
		_, _ = fmt.Fprintf(w, "  %s\n", *a.Description)
	}
}

func printHealth(w io.Writer, h *client.HealthStatus) {
	status := color.New(color.FgHiGreen).Sprint(h.Status)
	if !h.Healthy() {
		status = color.New(color.FgRed).Sprint(h.Status)
	}
	_, _ = fmt.Fprintf(w, "%s", status)
	if len(h.Down) > 0 {
		_, _ = fmt.Fprintf(w, " (down: %v)", h.Down)
	}
	_, _ = fmt.Fprintln(w)
}
