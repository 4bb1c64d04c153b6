package ics

import (
	"slices"
	"testing"
)

func TestUnfold(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "crlf and lf mixed",
			in:   "BEGIN:VEVENT\r\nSUMMARY:Quiz\nEND:VEVENT\r\n",
			want: []string{"BEGIN:VEVENT", "SUMMARY:Quiz", "END:VEVENT"},
		},
		{
			name: "space continuation",
			in:   "DESCRIPTION:Live music all\r\n  night long\r\n",
			want: []string{"DESCRIPTION:Live music all night long"},
		},
		{
			name: "tab continuation",
			in:   "SUMMARY:Match\n\tday\n",
			want: []string{"SUMMARY:Matchday"},
		},
		{
			name: "blank lines dropped",
			in:   "A:1\n\n\r\nB:2\n",
			want: []string{"A:1", "B:2"},
		},
		{
			name: "leading continuation ignored",
			in:   " orphan\nA:1\n",
			want: []string{"A:1"},
		},
		{
			name: "byte order mark",
			in:   "\uFEFFBEGIN:VCALENDAR\n",
			want: []string{"BEGIN:VCALENDAR"},
		},
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Unfold(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Unfold(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
