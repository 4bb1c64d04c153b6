package ics

import (
	"strconv"
	"strings"
	"time"
)

// DateTime is the interpreted value of a DTSTART/DTEND property.
type DateTime struct {
	Time   time.Time
	AllDay bool
}

// ParseDateTime interprets a DATE or DATE-TIME token.
//
// A value is date-only when VALUE=DATE is present or the token is exactly
// eight digits; it then maps to midnight in loc. Otherwise the first eight
// digits are the date and an optional "T" introduces up to three HH/MM/SS
// pairs, missing pairs counting as 00. A trailing "Z" selects UTC, anything
// else is wall time in loc. TZID is not consulted.
//
// ok is false when the token does not describe a real calendar instant;
// callers drop the enclosing event.
func ParseDateTime(value string, params map[string]string, loc *time.Location) (dt DateTime, ok bool) {
	if loc == nil {
		loc = time.Local
	}
	value = strings.TrimSpace(value)

	dateOnly := strings.EqualFold(params["VALUE"], "DATE") || (len(value) == 8 && allDigits(value))

	if len(value) < 8 || !allDigits(value[:8]) {
		return DateTime{}, false
	}
	year, _ := strconv.Atoi(value[0:4])
	month, _ := strconv.Atoi(value[4:6])
	day, _ := strconv.Atoi(value[6:8])
	if !validDate(year, month, day) {
		return DateTime{}, false
	}

	if dateOnly {
		return DateTime{
			Time:   time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc),
			AllDay: true,
		}, true
	}

	rest := value[8:]
	if strings.HasSuffix(rest, "Z") {
		loc = time.UTC
		rest = strings.TrimSuffix(rest, "Z")
	}

	var clock [3]int
	if strings.HasPrefix(rest, "T") {
		digits := leadingDigits(rest[1:], 6)
		for i := 0; i+2 <= len(digits); i += 2 {
			clock[i/2], _ = strconv.Atoi(digits[i : i+2])
		}
	}
	if clock[0] > 23 || clock[1] > 59 || clock[2] > 59 {
		return DateTime{}, false
	}

	return DateTime{
		Time: time.Date(year, time.Month(month), day, clock[0], clock[1], clock[2], 0, loc),
	}, true
}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day && int(t.Month()) == month
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func leadingDigits(s string, max int) string {
	n := 0
	for n < len(s) && n < max && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return s[:n]
}
