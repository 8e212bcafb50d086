/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timenorm turns loosely typed clock times ("9", "9:30am", "9 pm")
// into canonical 24-hour "HH:MM" strings.
package timenorm

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	separators = regexp.MustCompile(`[\s,]+`)
	// The time shape only has to match a prefix of the token, and attached
	// suffixes are lowercase: "2:15PM" reads as 02:15.
	clockToken = regexp.MustCompile(`^(\d{1,2})(?::(\d{1,2}))?(am)?(pm)?`)
	bareMarker = regexp.MustCompile(`(?i)^(am)?(pm)?$`)
)

// slot is one entry of the working list. A bare AM/PM token that follows a
// parsed time rewrites the previous slot, so hour is kept as written until
// the whole input has been scanned.
type slot struct {
	ok     bool
	hour   int
	minute int
	am     bool
	pm     bool
}

func (s slot) canonical() (string, bool) {
	if !s.ok {
		return "", false
	}
	hour := s.hour
	if s.am || s.pm {
		if hour == 12 {
			hour = 0
		}
		// Both markers can match ("9ampm"); PM wins.
		if s.pm {
			hour += 12
		}
	}
	if hour < 0 || hour > 23 || s.minute < 0 || s.minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, s.minute), true
}

// Normalize parses a comma and/or whitespace separated list of times and
// returns the canonical forms sorted ascending. Tokens that do not look like
// a time are dropped; Normalize never fails.
func Normalize(raw string) []string {
	tokens := tokenize(raw)
	slots := make([]slot, len(tokens))

	for i, tok := range tokens {
		if m := bareMarker.FindStringSubmatch(tok); m != nil {
			if i > 0 && slots[i-1].ok {
				slots[i-1].am = m[1] != ""
				slots[i-1].pm = m[2] != ""
			}
			continue
		}

		m := clockToken.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		hour, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		minute := 0
		if m[2] != "" {
			if minute, err = strconv.Atoi(m[2]); err != nil {
				continue
			}
		}
		slots[i] = slot{
			ok:     true,
			hour:   hour,
			minute: minute,
			am:     m[3] != "",
			pm:     m[4] != "",
		}
	}

	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if c, ok := s.canonical(); ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Join renders canonical times in the space separated form stored per day.
func Join(times []string) string {
	return strings.Join(times, " ")
}

// NormalizeDay is Normalize followed by Join.
func NormalizeDay(raw string) string {
	return Join(Normalize(raw))
}

// IsCanonical reports whether s is exactly a valid "HH:MM" string.
func IsCanonical(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	hour, err := strconv.Atoi(s[:2])
	if err != nil || hour < 0 || hour > 23 {
		return false
	}
	minute, err := strconv.Atoi(s[3:])
	if err != nil || minute < 0 || minute > 59 {
		return false
	}
	return s[0] >= '0' && s[0] <= '9' && s[3] >= '0' && s[3] <= '9'
}

func tokenize(raw string) []string {
	parts := separators.Split(raw, -1)
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}
