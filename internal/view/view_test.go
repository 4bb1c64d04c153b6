package view

import (
	"testing"
	"time"

	"venuecal/internal/model"
	"venuecal/internal/window"
)

var loc = time.FixedZone("CET", 3600)

// now is Wednesday 2024-03-13 15:00 in the display zone.
var now = time.Date(2024, 3, 13, 15, 0, 0, 0, loc)

func at(d, hh, mm int) time.Time {
	return time.Date(2024, 3, d, hh, mm, 0, 0, loc)
}

func dayLabels(days []Day) []string {
	var out []string
	for _, d := range days {
		out = append(out, d.Label)
	}
	return out
}

func TestBuildAgenda_NoEventsShowsTwoDays(t *testing.T) {
	a := BuildAgenda(nil, now)
	if a.Empty {
		t.Fatal("empty feed should render the day frame, not the empty state")
	}
	if len(a.Days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(a.Days))
	}
	if a.Days[0].Label != "Today" || a.Days[1].Label != "Tomorrow" {
		t.Errorf("labels = %v", dayLabels(a.Days))
	}
	for _, d := range a.Days {
		if len(d.Items) != 0 {
			t.Errorf("%s: want placeholder day, got %d items", d.Label, len(d.Items))
		}
	}
}

func TestBuildAgenda_AllPastIsEmpty(t *testing.T) {
	events := []model.Event{
		{Title: "yesterday", Start: at(12, 19, 0), End: at(12, 22, 0)},
		{Title: "this morning", Start: at(13, 9, 0)},
	}
	a := BuildAgenda(events, now)
	if !a.Empty || a.Days != nil {
		t.Errorf("agenda = %+v, want empty state", a)
	}
}

func TestBuildAgenda_ExtendsToLastEventDay(t *testing.T) {
	events := []model.Event{
		{Title: "sunday roast", Start: at(17, 13, 0), End: at(17, 15, 0)},
		{Title: "quiz", Start: at(13, 19, 0), End: at(13, 21, 0)},
	}
	a := BuildAgenda(events, now)
	want := []string{"Today", "Tomorrow", "Friday", "Saturday", "Sunday"}
	got := dayLabels(a.Days)
	if len(got) != len(want) {
		t.Fatalf("labels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("labels[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if n := len(a.Days[0].Items); n != 1 || a.Days[0].Items[0].TimeLabel != "19:00 – 21:00" {
		t.Errorf("today items = %+v", a.Days[0].Items)
	}
	for _, d := range a.Days[1:4] {
		if len(d.Items) != 0 {
			t.Errorf("%s should be a placeholder day", d.Label)
		}
	}
}

func TestBuildAgenda_CappedAtSixDays(t *testing.T) {
	events := []model.Event{
		{Title: "far away", Start: at(25, 20, 0)},
	}
	a := BuildAgenda(events, now)
	if len(a.Days) != MaxAgendaDays {
		t.Fatalf("len(days) = %d, want %d", len(a.Days), MaxAgendaDays)
	}
	for _, d := range a.Days {
		if len(d.Items) != 0 {
			t.Errorf("%s: unexpected items", d.Label)
		}
	}
}

func TestBuildAgenda_VisibilityAndSpans(t *testing.T) {
	events := []model.Event{
		{Title: "ended", Start: at(13, 12, 0), End: at(13, 14, 0)},
		{Title: "running", Start: at(13, 14, 0), End: at(13, 16, 0)},
		{Title: "weekend fest", Start: at(14, 0, 0), End: time.Date(2024, 3, 15, 23, 59, 59, 999e6, loc), AllDay: true},
		// UTC input must land on the display-zone day.
		{Title: "utc late", Start: time.Date(2024, 3, 13, 23, 30, 0, 0, time.UTC)},
	}
	a := BuildAgenda(events, now)
	if len(a.Days) != 3 {
		t.Fatalf("len(days) = %d, want 3", len(a.Days))
	}

	today := a.Days[0].Items
	if len(today) != 1 || today[0].Event.Title != "running" {
		t.Errorf("today = %+v", today)
	}

	tomorrow := a.Days[1].Items
	if len(tomorrow) != 2 || tomorrow[0].Event.Title != "weekend fest" || tomorrow[1].Event.Title != "utc late" {
		t.Fatalf("tomorrow = %+v", tomorrow)
	}
	if tomorrow[0].TimeLabel != LabelAllDay {
		t.Errorf("all-day label = %q", tomorrow[0].TimeLabel)
	}
	if tomorrow[1].TimeLabel != "00:30" {
		t.Errorf("utc event label = %q, want display-zone clock", tomorrow[1].TimeLabel)
	}

	friday := a.Days[2].Items
	if len(friday) != 1 || friday[0].Event.Title != "weekend fest" {
		t.Errorf("friday = %+v", friday)
	}
}

func TestBuildAgenda_NoEndOccupiesSingleDay(t *testing.T) {
	events := []model.Event{
		{Title: "point", Start: at(14, 20, 0)},
		{Title: "later", Start: at(16, 20, 0)},
	}
	a := BuildAgenda(events, now)
	for _, d := range a.Days {
		for _, it := range d.Items {
			if it.Event.Title == "point" && d.Label != "Tomorrow" {
				t.Errorf("point-in-time event listed on %s", d.Label)
			}
		}
	}
}

func TestBuildWeek_EmptyWeek(t *testing.T) {
	events := []model.Event{
		{Title: "last week", Start: at(8, 20, 0)},
		{Title: "next week", Start: at(18, 20, 0)},
	}
	w := BuildWeek(events, now)
	if !w.Empty {
		t.Error("week without events should be empty")
	}
	if len(w.Days) != 0 {
		t.Errorf("len(days) = %d, want 0", len(w.Days))
	}
	if w.Label != "Mar 11 – 17, 2024" {
		t.Errorf("label = %q", w.Label)
	}
}

func TestBuildWeek_SkipsEmptyDaysAndLabelsSpans(t *testing.T) {
	events := []model.Event{
		{Title: "late session", Start: at(12, 21, 0), End: at(14, 2, 0)},
		{Title: "sunday match", Start: at(17, 16, 0)},
		// Includes events that have already ended this week.
		{Title: "monday lunch", Start: at(11, 12, 0), End: at(11, 13, 0)},
	}
	w := BuildWeek(events, now)
	if w.Empty {
		t.Fatal("week should not be empty")
	}

	want := []struct {
		label string
		times []string
	}{
		{"Monday, Mar 11", []string{"12:00 – 13:00"}},
		{"Tuesday, Mar 12", []string{"21:00 – …"}},
		{"Wednesday, Mar 13", []string{LabelOngoing}},
		{"Thursday, Mar 14", []string{"until 02:00"}},
		{"Sunday, Mar 17", []string{"16:00"}},
	}
	if len(w.Days) != len(want) {
		t.Fatalf("days = %v, want %d days", dayLabels(w.Days), len(want))
	}
	for i, d := range w.Days {
		if d.Label != want[i].label {
			t.Errorf("days[%d].Label = %q, want %q", i, d.Label, want[i].label)
		}
		for j, it := range d.Items {
			if it.TimeLabel != want[i].times[j] {
				t.Errorf("%s item %d label = %q, want %q", d.Label, j, it.TimeLabel, want[i].times[j])
			}
		}
	}
}

func TestTimeLabel(t *testing.T) {
	day := window.DayRange(at(13, 0, 0))
	tests := []struct {
		name string
		ev   model.Event
		day  *window.Range
		want string
	}{
		{"all day", model.Event{Start: at(13, 0, 0), AllDay: true}, &day, LabelAllDay},
		{"no end", model.Event{Start: at(13, 19, 0)}, nil, "19:00"},
		{"end equals start", model.Event{Start: at(13, 19, 0), End: at(13, 19, 0)}, nil, "19:00"},
		{"start and end", model.Event{Start: at(13, 19, 0), End: at(13, 23, 0)}, &day, "19:00 – 23:00"},
		{"ends at midnight", model.Event{Start: at(13, 19, 0), End: at(14, 0, 0)}, &day, "19:00 – 00:00"},
		{"started before, ends today", model.Event{Start: at(12, 22, 0), End: at(13, 1, 30)}, &day, "until 01:30"},
		{"started before, no end in day", model.Event{Start: at(12, 22, 0), End: at(15, 1, 0)}, &day, LabelOngoing},
		{"runs past day", model.Event{Start: at(13, 22, 0), End: at(14, 3, 0)}, &day, "22:00 – …"},
		{"runs past day without context", model.Event{Start: at(13, 22, 0), End: at(14, 3, 0)}, nil, "22:00 – 03:00"},
	}
	for _, tt := range tests {
		if got := TimeLabel(tt.ev, tt.day); got != tt.want {
			t.Errorf("%s: TimeLabel = %q, want %q", tt.name, got, tt.want)
		}
	}
}
