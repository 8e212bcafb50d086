/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package thread splits over-length announcement text into a sequence of
// posts that each satisfy a length rule.
package thread

import (
	"errors"
	"fmt"
	"strings"
)

// Break characters are only used when few enough runes follow them inside
// the working window.
const (
	newlineReach = 60
	spaceReach   = 20
	lookahead    = 1
)

// ErrStalled is returned when the predicate reports a valid prefix that
// cannot advance the split.
var ErrStalled = errors.New("thread: predicate made no progress")

// Verdict is a predicate's answer for one candidate. ValidPrefix counts runes.
type Verdict struct {
	Valid       bool
	ValidPrefix int
}

// Predicate decides whether candidate fits in a single post.
type Predicate func(candidate string) Verdict

// Segment is one post of a split thread. Start and Length are rune offsets
// into the original text. Raw is the untrimmed slice, Text the form to send.
type Segment struct {
	Index  int    `json:"index"`
	Start  int    `json:"start"`
	Length int    `json:"length"`
	Raw    string `json:"raw"`
	Text   string `json:"text"`
	Color  string `json:"color"`
}

// Palette cycles through the segment colors used by the editor preview.
var Palette = []string{"#d9a400", "#3a7bd5", "#2e9e5b", "#c2410c", "#8e44ad"}

// Split cuts text into segments. Concatenating every Raw reproduces text.
func Split(text string, isValid Predicate) ([]Segment, error) {
	rest := []rune(text)
	segments := make([]Segment, 0, 1)
	start := 0

	for len(rest) > 0 {
		v := isValid(string(rest))
		if v.Valid {
			break
		}
		if v.ValidPrefix <= 0 || v.ValidPrefix >= len(rest) {
			return nil, fmt.Errorf("%w: prefix %d of %d runes", ErrStalled, v.ValidPrefix, len(rest))
		}

		cut := breakPoint(rest, v.ValidPrefix)
		segments = append(segments, newSegment(len(segments), start, rest[:cut]))
		start += cut
		rest = rest[cut:]
	}

	if len(rest) > 0 || len(segments) == 0 {
		segments = append(segments, newSegment(len(segments), start, rest))
	}
	return segments, nil
}

// breakPoint returns the number of runes to emit from rest.
func breakPoint(rest []rune, prefix int) int {
	end := prefix + lookahead
	if end > len(rest) {
		end = len(rest)
	}
	window := rest[:end]

	if i := lastIndex(window, '\n'); i >= 0 && len(window)-1-i <= newlineReach {
		return i + 1
	}
	if i := lastIndex(window, ' '); i >= 0 && len(window)-1-i <= spaceReach {
		return i + 1
	}
	return prefix
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

func newSegment(index, start int, runes []rune) Segment {
	raw := string(runes)
	return Segment{
		Index:  index,
		Start:  start,
		Length: len(runes),
		Raw:    raw,
		Text:   strings.TrimSpace(raw),
		Color:  Palette[index%len(Palette)],
	}
}

// Sendable returns the non-empty trimmed texts in order.
func Sendable(segments []Segment) []string {
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Text != "" {
			out = append(out, s.Text)
		}
	}
	return out
}
