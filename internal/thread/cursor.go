/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package thread

// Cursor locates a caret inside a split thread.
type Cursor struct {
	Segment int `json:"segment"`
	Offset  int `json:"offset"`
}

// MapCursor converts a rune offset into the original text to a segment and
// an offset inside it. Zero-length segments never receive the cursor.
// Offsets outside the text clamp to its ends.
func MapCursor(offset int, segments []Segment) Cursor {
	if offset < 0 {
		offset = 0
	}

	consumed, last := 0, -1
	for i, s := range segments {
		if s.Length == 0 {
			continue
		}
		if consumed+s.Length >= offset {
			return Cursor{Segment: i, Offset: offset - consumed}
		}
		consumed += s.Length
		last = i
	}

	if last < 0 {
		return Cursor{}
	}
	return Cursor{Segment: last, Offset: segments[last].Length}
}
