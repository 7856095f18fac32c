// Package filename makes arbitrary titles usable as single path segments.
package filename

import "strings"

// Sanitize removes characters that are illegal in file names on common
// filesystems: / \ : * ? " < > | and control characters 0x00-0x1F.
// The relative segments "." and ".." become "_".
func Sanitize(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, name)

	if cleaned == "." || cleaned == ".." {
		return "_"
	}
	return cleaned
}
