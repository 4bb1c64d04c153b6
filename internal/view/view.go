// Package view assembles parsed events into the two render-ready layouts:
// the weekly grid and the rolling sidebar agenda. Both take "now"
// explicitly; its location is the display zone.
package view

import (
	"time"

	"venuecal/internal/model"
	"venuecal/internal/window"
)

const (
	LabelAllDay  = "All day"
	LabelOngoing = "Ongoing"

	// Agenda day limits: always show MinAgendaDays, never more than
	// MaxAgendaDays.
	MinAgendaDays = 2
	MaxAgendaDays = 6

	clockLayout = "15:04"
)

// Item is one event prepared for display.
type Item struct {
	Event     model.Event
	TimeLabel string
}

// Day is one rendered day section. Items may be empty in the agenda, where
// the presentation shows a "no events" placeholder.
type Day struct {
	Date  time.Time
	Label string
	Items []Item
}

// Week is the weekly grid. Days only holds days with events; Empty is set
// when none of the seven days has any.
type Week struct {
	Range window.Range
	Label string
	Days  []Day
	Empty bool
}

// Agenda is the sidebar layout. Empty means every event in the feed has
// already ended; Days is nil then.
type Agenda struct {
	Days  []Day
	Empty bool
}

// BuildWeek lays out the Monday-start week containing now.
func BuildWeek(events []model.Event, now time.Time) Week {
	events = localize(events, now.Location())
	r := window.CurrentWeek(now)

	w := Week{
		Range: r,
		Label: window.FormatWeekLabel(r),
	}
	for i := 0; i < 7; i++ {
		day := window.DayRange(r.Start.AddDate(0, 0, i))
		dayEvents := window.InRange(events, day)
		if len(dayEvents) == 0 {
			continue
		}
		d := Day{
			Date:  day.Start,
			Label: day.Start.Format("Monday, Jan 2"),
			Items: make([]Item, 0, len(dayEvents)),
		}
		for _, ev := range dayEvents {
			d.Items = append(d.Items, Item{Event: ev, TimeLabel: TimeLabel(ev, &day)})
		}
		w.Days = append(w.Days, d)
	}
	w.Empty = len(w.Days) == 0
	return w
}

// BuildAgenda lays out upcoming events from today onwards: at least
// MinAgendaDays days, extended through the last day that has an event, and
// capped at MaxAgendaDays.
func BuildAgenda(events []model.Event, now time.Time) Agenda {
	loc := now.Location()

	var upcoming []model.Event
	for _, ev := range localize(events, loc) {
		if !ev.Until().Before(now) {
			upcoming = append(upcoming, ev)
		}
	}
	// A feed that has events, all of them over, collapses to the empty
	// state. An empty feed still renders the minimum day frame.
	if len(upcoming) == 0 && len(events) > 0 {
		return Agenda{Empty: true}
	}

	today := window.StartOfDay(now)
	lastDay, ok := window.LastDay(upcoming, loc)
	if !ok {
		lastDay = today
	}

	n := 0
	for n < MaxAgendaDays {
		if n >= MinAgendaDays && today.AddDate(0, 0, n).After(lastDay) {
			break
		}
		n++
	}

	var a Agenda
	for i, b := range window.Buckets(upcoming, today, n) {
		d := Day{
			Date:  b.Day,
			Label: agendaLabel(i, b.Day),
			Items: make([]Item, 0, len(b.Events)),
		}
		for _, ev := range b.Events {
			d.Items = append(d.Items, Item{Event: ev, TimeLabel: TimeLabel(ev, nil)})
		}
		a.Days = append(a.Days, d)
	}
	return a
}

// TimeLabel describes when ev happens. day, when non-nil, is the day
// section the event is listed under; events crossing its boundaries are
// labelled relative to it.
func TimeLabel(ev model.Event, day *window.Range) string {
	if ev.AllDay {
		return LabelAllDay
	}

	start := ev.Start.Format(clockLayout)
	if day != nil {
		if ev.Start.Before(day.Start) {
			if ev.HasEnd() && !ev.End.After(day.End) {
				return "until " + ev.End.Format(clockLayout)
			}
			return LabelOngoing
		}
		if ev.Until().After(day.End) {
			return start + " – …"
		}
	}
	if ev.HasEnd() && ev.End.After(ev.Start) {
		return start + " – " + ev.End.Format(clockLayout)
	}
	return start
}

func agendaLabel(offset int, day time.Time) string {
	switch offset {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		return day.Weekday().String()
	}
}

// localize returns copies of events with their instants in loc, so day
// boundaries and clock labels use the display zone.
func localize(events []model.Event, loc *time.Location) []model.Event {
	out := make([]model.Event, len(events))
	for i, ev := range events {
		ev.Start = ev.Start.In(loc)
		if ev.HasEnd() {
			ev.End = ev.End.In(loc)
		}
		out[i] = ev
	}
	return out
}
