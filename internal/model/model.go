package model

import "time"

// DefaultTitle is used for events whose feed entry carries no SUMMARY.
const DefaultTitle = "Untitled event"

// Event is a single normalized calendar entry as produced by the feed
// parser. Values are immutable once emitted; views and windows only read
// them.
type Event struct {
	Title       string
	Description string
	Location    string

	// Start is always set for emitted events.
	Start time.Time

	// End is the zero time when the feed had no usable DTEND. For all-day
	// events it is inclusive: the last moment of the last occupied day.
	End time.Time

	AllDay bool
}

// HasEnd reports whether the event carries an end instant.
func (e Event) HasEnd() bool {
	return !e.End.IsZero()
}

// Until returns the end of the event, or its start for point-in-time
// events. Bucketing and visibility rules operate on this value.
func (e Event) Until() time.Time {
	if e.HasEnd() {
		return e.End
	}
	return e.Start
}
