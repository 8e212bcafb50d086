/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule resolves a channel's recurring weekly broadcast times.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/mustard/internal/timenorm"
)

const secondsPerDay = 86400

// Week holds one space separated list of "HH:MM" times per weekday,
// indexed Sunday=0 through Saturday=6.
type Week [7]string

// Occurrence is the next scheduled broadcast relative to some instant.
type Occurrence struct {
	Weekday      time.Weekday `json:"weekday"`
	Time         string       `json:"time"`
	DaysAhead    int          `json:"days_ahead"`
	SecondsUntil int          `json:"seconds_until"`
	At           time.Time    `json:"at"`
}

// ParseWeek builds a Week from up to seven day strings.
func ParseWeek(days []string) Week {
	var w Week
	for i := 0; i < len(days) && i < len(w); i++ {
		w[i] = days[i]
	}
	return w
}

// Normalized returns a copy of the week with every day run through timenorm.
func (w Week) Normalized() Week {
	var out Week
	for i, day := range w {
		out[i] = timenorm.NormalizeDay(day)
	}
	return out
}

// Days returns the week as a slice, Sunday first.
func (w Week) Days() []string {
	return append([]string(nil), w[:]...)
}

// Empty reports whether no day has any time.
func (w Week) Empty() bool {
	for _, day := range w {
		if len(times(day)) > 0 {
			return false
		}
	}
	return true
}

// NextOccurrence finds the first scheduled time after now-offset. The second
// return value is false when the whole week is empty.
func NextOccurrence(w Week, now time.Time, offset time.Duration) (Occurrence, bool) {
	shifted := now.Add(-offset)
	today := int(shifted.Weekday())
	current := shifted.Format("15:04")

	// Same day, strictly later than the current minute.
	if t, ok := earliestAfter(times(w[today]), current); ok {
		return build(time.Weekday(today), t, 0, shifted), true
	}

	// Forward scan over the following six days.
	for ahead := 1; ahead < 7; ahead++ {
		day := (today + ahead) % 7
		if t, ok := earliest(times(w[day])); ok {
			return build(time.Weekday(day), t, ahead, shifted), true
		}
	}

	// Only today has times and all of them have passed: a week from now.
	if t, ok := earliest(times(w[today])); ok {
		return build(time.Weekday(today), t, 7, shifted), true
	}

	return Occurrence{}, false
}

// DiffSeconds is the signed number of seconds from instant's time of day to
// target ("HH:MM") on the same day. A malformed target counts as midnight.
func DiffSeconds(target string, instant time.Time) int {
	return minutesOf(target)*60 - secondsOfDay(instant)
}

// Upcoming lists the next n occurrences starting at now.
func Upcoming(w Week, now time.Time, n int) []Occurrence {
	if n <= 0 {
		return nil
	}
	out := make([]Occurrence, 0, n)
	cursor := now
	for len(out) < n {
		occ, ok := NextOccurrence(w, cursor, 0)
		if !ok {
			break
		}
		// Re-express against the caller's now.
		occ.DaysAhead = daysBetween(now, occ.At)
		occ.SecondsUntil = occ.DaysAhead*secondsPerDay + DiffSeconds(occ.Time, now)
		out = append(out, occ)
		// NextOccurrence only returns times strictly after the cursor
		// minute, and At sits on its wall-clock minute even across DST.
		cursor = occ.At
	}
	return out
}

// Label renders the day part of an occurrence for display.
func Label(occ Occurrence) string {
	switch occ.DaysAhead {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	case 7:
		return "Next " + occ.Weekday.String()
	default:
		return occ.Weekday.String()
	}
}

func build(day time.Weekday, t string, ahead int, shifted time.Time) Occurrence {
	secs := ahead*secondsPerDay + DiffSeconds(t, shifted)
	if secs < 0 {
		panic(fmt.Sprintf("schedule: negative countdown %ds for %s %s", secs, day, t))
	}
	minutes := minutesOf(t)
	y, m, d := shifted.Date()
	return Occurrence{
		Weekday:      day,
		Time:         t,
		DaysAhead:    ahead,
		SecondsUntil: secs,
		At:           time.Date(y, m, d+ahead, minutes/60, minutes%60, 0, 0, shifted.Location()),
	}
}

// times returns the canonical entries of one day, skipping anything malformed.
func times(day string) []string {
	fields := strings.Fields(day)
	out := fields[:0]
	for _, f := range fields {
		if timenorm.IsCanonical(f) {
			out = append(out, f)
		}
	}
	return out
}

func earliest(list []string) (string, bool) {
	if len(list) == 0 {
		return "", false
	}
	best := list[0]
	for _, t := range list[1:] {
		if t < best {
			best = t
		}
	}
	return best, true
}

func earliestAfter(list []string, current string) (string, bool) {
	best, found := "", false
	for _, t := range list {
		if t > current && (!found || t < best) {
			best, found = t, true
		}
	}
	return best, found
}

func minutesOf(hhmm string) int {
	if !timenorm.IsCanonical(hhmm) {
		return 0
	}
	h, _ := strconv.Atoi(hhmm[:2])
	m, _ := strconv.Atoi(hhmm[3:])
	return h*60 + m
}

func secondsOfDay(t time.Time) int {
	h, m, s := t.Clock()
	return h*3600 + m*60 + s
}

func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.In(from.Location()).Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
