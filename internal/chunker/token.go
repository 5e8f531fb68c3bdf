package chunker

import "unicode/utf8"

// Length measures content in characters, not bytes.
func Length(text string) int {
	return utf8.RuneCountInString(text)
}
