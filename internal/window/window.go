// Package window computes day and week boundaries and sorts events into
// them. All functions work in the location of the instants they are given;
// callers convert "now" into the display zone first.
package window

import (
	"fmt"
	"slices"
	"time"

	"venuecal/internal/model"
)

// Range is a half-open interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// contains reports whether t lies inside the range.
func (r Range) contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// DayBucket is one calendar day and the events overlapping it, sorted by
// start.
type DayBucket struct {
	Day    time.Time
	Events []model.Event
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayRange returns [midnight, next midnight) for the day containing t.
func DayRange(t time.Time) Range {
	start := StartOfDay(t)
	return Range{Start: start, End: start.AddDate(0, 0, 1)}
}

// CurrentWeek returns the Monday-start week containing now.
func CurrentWeek(now time.Time) Range {
	offset := (int(now.Weekday()) + 6) % 7
	start := StartOfDay(now).AddDate(0, 0, -offset)
	return Range{Start: start, End: start.AddDate(0, 0, 7)}
}

// FormatWeekLabel renders a week range for headings, e.g.
// "Mar 4 – 10, 2024", "Jan 29 – Feb 4, 2024" or "Dec 30 2024 – Jan 5 2025".
func FormatWeekLabel(r Range) string {
	first := r.Start
	last := r.End.AddDate(0, 0, -1)

	switch {
	case first.Year() == last.Year() && first.Month() == last.Month():
		return fmt.Sprintf("%s – %d, %d", first.Format("Jan 2"), last.Day(), last.Year())
	case first.Year() == last.Year():
		return fmt.Sprintf("%s – %s, %d", first.Format("Jan 2"), last.Format("Jan 2"), last.Year())
	default:
		return fmt.Sprintf("%s – %s", first.Format("Jan 2 2006"), last.Format("Jan 2 2006"))
	}
}

// Overlaps reports whether ev intersects r. Events without an end are
// treated as instants.
func Overlaps(ev model.Event, r Range) bool {
	return ev.Start.Before(r.End) && !ev.Until().Before(r.Start)
}

// InRange returns the events overlapping r, sorted by start with ties in
// input order.
func InRange(events []model.Event, r Range) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if Overlaps(ev, r) {
			out = append(out, ev)
		}
	}
	SortByStart(out)
	return out
}

// SortByStart sorts events in place, keeping input order for equal starts.
func SortByStart(events []model.Event) {
	slices.SortStableFunc(events, func(a, b model.Event) int {
		return a.Start.Compare(b.Start)
	})
}

// Occupies reports whether ev occupies the calendar day starting at day:
// every day from StartOfDay(Start) through StartOfDay(Until) inclusive.
func Occupies(ev model.Event, day time.Time) bool {
	day = StartOfDay(day)
	first := StartOfDay(ev.Start.In(day.Location()))
	last := StartOfDay(ev.Until().In(day.Location()))
	return !day.Before(first) && !day.After(last)
}

// Buckets builds one DayBucket per day for n consecutive days starting at
// the day containing from.
func Buckets(events []model.Event, from time.Time, n int) []DayBucket {
	out := make([]DayBucket, 0, n)
	day := StartOfDay(from)
	for i := 0; i < n; i++ {
		b := DayBucket{Day: day}
		for _, ev := range events {
			if Occupies(ev, day) {
				b.Events = append(b.Events, ev)
			}
		}
		SortByStart(b.Events)
		out = append(out, b)
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// LastDay returns the latest day any event occupies, in loc. ok is false for
// an empty slice.
func LastDay(events []model.Event, loc *time.Location) (last time.Time, ok bool) {
	for _, ev := range events {
		d := StartOfDay(ev.Until().In(loc))
		if !ok || d.After(last) {
			last, ok = d, true
		}
	}
	return last, ok
}
