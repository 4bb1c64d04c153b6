package main

import (
	"testing"
	"time"
)

func TestParseAt(t *testing.T) {
	loc := time.FixedZone("CET", 3600)

	got, err := parseAt("2024-03-13", loc)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 3, 13, 0, 0, 0, 0, loc); !got.Equal(want) || got.Location() != loc {
		t.Errorf("date = %v, want %v", got, want)
	}

	got, err = parseAt("2024-03-13T14:00:00Z", loc)
	if err != nil {
		t.Fatal(err)
	}
	if got.Hour() != 15 || got.Location() != loc {
		t.Errorf("rfc3339 = %v, want 15:00 in display zone", got)
	}

	if _, err := parseAt("next tuesday", loc); err == nil {
		t.Error("expected error for free-form input")
	}
}
