package ics

import "testing"

func TestDecodeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`Happy hour\nfrom 5`, "Happy hour\nfrom 5"},
		{`Beer\, burgers\; band`, "Beer, burgers; band"},
		{`C:\\pub`, `C:\pub`},
		// An escaped backslash followed by n stays a literal backslash-n.
		{`a\\nb`, `a\nb`},
		{`Upper\Ncase`, "Upper\ncase"},
		{"  padded  ", "padded"},
		{`trailing\n`, "trailing"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DecodeText(tt.in); got != tt.want {
			t.Errorf("DecodeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
