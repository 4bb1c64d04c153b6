package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"venuecal/internal/model"
)

const productID = "-//venuecal//venue events//EN"

// Export serializes normalized events back into an iCalendar document so
// other calendar clients can subscribe to a venue's cleaned-up feed.
// All-day ends are turned back into exclusive DATE values.
func Export(name string, events []model.Event, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	seen := make(map[string]int, len(events))
	for _, ev := range events {
		key := eventKey(ev)
		ve := cal.AddEvent(eventUID(key, seen[key]))
		seen[key]++
		ve.SetDtStampTime(stamp.UTC())
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}

		if ev.AllDay {
			ve.SetAllDayStartAt(ev.Start)
			if ev.HasEnd() {
				y, m, d := ev.End.Date()
				ve.SetAllDayEndAt(time.Date(y, m, d+1, 0, 0, 0, 0, ev.End.Location()))
			}
			continue
		}
		ve.SetStartAt(ev.Start)
		if ev.HasEnd() {
			ve.SetEndAt(ev.End)
		}
	}

	return cal.Serialize()
}

// eventKey identifies an event by title, time span and location.
func eventKey(ev model.Event) string {
	end := ""
	if ev.HasEnd() {
		end = ev.End.UTC().Format(time.RFC3339Nano)
	}
	return strings.Join([]string{
		ev.Title,
		ev.Start.UTC().Format(time.RFC3339Nano),
		end,
		ev.Location,
	}, "\x00")
}

// eventUID derives a stable UID so re-exports of the same feed do not look
// like new events to subscribers. n counts earlier events with the same key,
// so identical rows (one match on several screens) stay distinct.
func eventUID(key string, n int) string {
	if n > 0 {
		key += "\x00" + strconv.Itoa(n)
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8]) + "@venuecal"
}
