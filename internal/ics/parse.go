package ics

import (
	"slices"
	"strings"
	"time"

	"venuecal/internal/model"
)

const (
	beginEvent = "BEGIN:VEVENT"
	endEvent   = "END:VEVENT"
)

// Property names the extractor keeps. Everything else is ignored.
const (
	propSummary     = "SUMMARY"
	propDescription = "DESCRIPTION"
	propLocation    = "LOCATION"
	propDtStart     = "DTSTART"
	propDtEnd       = "DTEND"
)

// Field is one content line split into name, parameters and raw value.
// Name and parameter keys are upper-cased.
type Field struct {
	Name   string
	Params map[string]string
	Value  string
}

// Result is the outcome of parsing one feed.
type Result struct {
	// Events is sorted by start; equal starts keep feed order.
	Events []model.Event
	// Dropped counts VEVENT blocks that produced no event: no or invalid
	// DTSTART, or no closing END:VEVENT.
	Dropped int
}

// ParseString is Parse for feed text already held as a string.
func ParseString(text string, loc *time.Location) Result {
	x := newExtractor(loc)
	for _, line := range Unfold(text) {
		x.step(line)
	}
	return x.finish()
}

// Parse extracts the VEVENTs of a feed. Floating date-times and all-day
// dates are placed in loc (time.Local when nil). Parsing never fails: a
// feed with no usable event yields an empty Result.
func Parse(body []byte, loc *time.Location) Result {
	return ParseString(string(body), loc)
}

// ParseField splits a content line at the first colon. ok is false for
// lines without a colon.
func ParseField(line string) (Field, bool) {
	head, value, found := strings.Cut(line, ":")
	if !found {
		return Field{}, false
	}

	segments := strings.Split(head, ";")
	f := Field{
		Name:   strings.ToUpper(strings.TrimSpace(segments[0])),
		Params: make(map[string]string, len(segments)-1),
		Value:  value,
	}
	for _, seg := range segments[1:] {
		key, val, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		f.Params[strings.ToUpper(strings.TrimSpace(key))] = val
	}
	return f, true
}

// extractor is the VEVENT state machine. fields is nil while outside a
// block.
type extractor struct {
	loc     *time.Location
	fields  map[string]Field
	events  []model.Event
	dropped int
}

func newExtractor(loc *time.Location) *extractor {
	if loc == nil {
		loc = time.Local
	}
	return &extractor{loc: loc}
}

func (x *extractor) inside() bool {
	return x.fields != nil
}

func (x *extractor) step(line string) {
	switch {
	case line == beginEvent:
		if x.inside() {
			// A new BEGIN abandons the open block.
			x.dropped++
		}
		x.fields = make(map[string]Field)
	case line == endEvent:
		if !x.inside() {
			return
		}
		if ev, ok := x.build(); ok {
			x.events = append(x.events, ev)
		} else {
			x.dropped++
		}
		x.fields = nil
	case x.inside():
		f, ok := ParseField(line)
		if !ok {
			return
		}
		switch f.Name {
		case propSummary, propDescription, propLocation, propDtStart, propDtEnd:
			x.fields[f.Name] = f
		}
	}
}

func (x *extractor) finish() Result {
	if x.inside() {
		x.dropped++
		x.fields = nil
	}
	events := slices.Clone(x.events)
	slices.SortStableFunc(events, func(a, b model.Event) int {
		return a.Start.Compare(b.Start)
	})
	return Result{Events: events, Dropped: x.dropped}
}

func (x *extractor) build() (model.Event, bool) {
	startField, ok := x.fields[propDtStart]
	if !ok {
		return model.Event{}, false
	}
	start, ok := ParseDateTime(startField.Value, startField.Params, x.loc)
	if !ok {
		return model.Event{}, false
	}

	ev := model.Event{
		Title:       DecodeText(x.fields[propSummary].Value),
		Description: DecodeText(x.fields[propDescription].Value),
		Location:    DecodeText(x.fields[propLocation].Value),
		Start:       start.Time,
		AllDay:      start.AllDay,
	}
	if ev.Title == "" {
		ev.Title = model.DefaultTitle
	}

	if endField, ok := x.fields[propDtEnd]; ok {
		if end, ok := ParseDateTime(endField.Value, endField.Params, x.loc); ok {
			ev.End = end.Time
			ev.AllDay = ev.AllDay || end.AllDay
		}
	}

	if ev.HasEnd() {
		if ev.AllDay {
			// DATE ends are exclusive; keep the last moment of the day before.
			ev.End = endOfDay(ev.End.AddDate(0, 0, -1))
		}
		if ev.End.Before(ev.Start) {
			if ev.AllDay {
				ev.End = endOfDay(ev.Start)
			} else {
				ev.End = ev.Start
			}
		}
	}

	return ev, true
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}
