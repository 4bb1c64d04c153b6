package view

import (
	"fmt"
	"io"
	"strings"
)

// WriteWeek prints w as plain text under a heading naming the venue.
func WriteWeek(out io.Writer, venue string, w Week) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", venue, w.Label)
	if w.Empty {
		b.WriteString("\n  No events this week.\n")
	}
	for _, d := range w.Days {
		writeDay(&b, d)
	}
	_, err := io.WriteString(out, b.String())
	return err
}

// WriteAgenda prints a as plain text under a heading naming the venue.
func WriteAgenda(out io.Writer, venue string, a Agenda) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nUpcoming\n", venue)
	if a.Empty {
		b.WriteString("\n  No upcoming events.\n")
	}
	for _, d := range a.Days {
		writeDay(&b, d)
	}
	_, err := io.WriteString(out, b.String())
	return err
}

func writeDay(b *strings.Builder, d Day) {
	fmt.Fprintf(b, "\n%s\n", d.Label)
	if len(d.Items) == 0 {
		b.WriteString("  No events\n")
		return
	}
	for _, it := range d.Items {
		fmt.Fprintf(b, "  %-15s %s", it.TimeLabel, it.Event.Title)
		if it.Event.Location != "" {
			fmt.Fprintf(b, " @ %s", it.Event.Location)
		}
		b.WriteByte('\n')
	}
}
