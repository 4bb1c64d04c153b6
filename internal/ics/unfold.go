package ics

import "strings"

const bom = "\uFEFF"

// Unfold splits feed text into logical lines. Physical lines that start
// with a single space or tab continue the previous logical line (RFC 5545
// folding); the leading whitespace character is removed. Blank lines are
// dropped and a continuation without a preceding line is ignored.
func Unfold(text string) []string {
	text = strings.TrimPrefix(text, bom)

	var (
		lines   []string
		current strings.Builder
		open    bool
	)
	flush := func() {
		if open {
			lines = append(lines, current.String())
			current.Reset()
		}
	}

	for _, phys := range strings.Split(text, "\n") {
		phys = strings.TrimSuffix(phys, "\r")
		if phys == "" {
			continue
		}
		if phys[0] == ' ' || phys[0] == '\t' {
			if open {
				current.WriteString(phys[1:])
			}
			continue
		}
		flush()
		current.WriteString(phys)
		open = true
	}
	flush()

	return lines
}
