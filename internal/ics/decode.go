package ics

import "strings"

// textUnescaper handles every escape in a single left-to-right pass, so a
// substituted character is never re-read as part of another escape.
var textUnescaper = strings.NewReplacer(
	`\n`, "\n",
	`\N`, "\n",
	`\,`, ",",
	`\;`, ";",
	`\\`, `\`,
)

// DecodeText un-escapes a TEXT property value and trims surrounding
// whitespace.
func DecodeText(raw string) string {
	return strings.TrimSpace(textUnescaper.Replace(raw))
}
