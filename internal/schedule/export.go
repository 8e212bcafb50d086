/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"
	"gorm.io/gorm"

	"github.com/friendsincode/mustard/internal/models"
	"github.com/friendsincode/mustard/internal/timenorm"
)

// DefaultBroadcastLength is the event length used when exporting.
const DefaultBroadcastLength = 2 * time.Hour

var rruleDays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ErrNoSchedule is returned when a channel has never saved a schedule.
var ErrNoSchedule = errors.New("schedule not configured")

// ExportService renders stored schedules as calendars.
type ExportService struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewExportService creates a new export service.
func NewExportService(db *gorm.DB, logger zerolog.Logger) *ExportService {
	return &ExportService{
		db:     db,
		logger: logger.With().Str("component", "schedule_export").Logger(),
	}
}

// ExportICalResult contains the iCal export data.
type ExportICalResult struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ExportToICal exports a channel's weekly schedule as recurring events.
func (s *ExportService) ExportToICal(ctx context.Context, channelID string, now time.Time) (*ExportICalResult, error) {
	var channel models.Channel
	if err := s.db.WithContext(ctx).First(&channel, "id = ?", channelID).Error; err != nil {
		return nil, fmt.Errorf("channel not found: %w", err)
	}

	var stored models.Schedule
	if err := s.db.WithContext(ctx).First(&stored, "channel_id = ?", channelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSchedule
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	loc := channel.Location()
	data, err := BuildCalendar(CalendarOptions{
		ChannelID: channel.ID,
		Name:      channel.Name(),
		Week:      ParseWeek(stored.Days),
		Location:  loc,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("channel_id", channelID).Int("bytes", len(data)).Msg("schedule exported")

	return &ExportICalResult{
		Data:        []byte(data),
		Filename:    fmt.Sprintf("%s-schedule.ics", slugify(channel.Name())),
		ContentType: "text/calendar; charset=utf-8",
	}, nil
}

// CalendarOptions drives BuildCalendar.
type CalendarOptions struct {
	ChannelID string
	Name      string
	Week      Week
	Location  *time.Location
	Now       time.Time
	Length    time.Duration
}

// BuildCalendar emits one weekly recurring VEVENT per scheduled (day, time).
func BuildCalendar(opts CalendarOptions) (string, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	length := opts.Length
	if length <= 0 {
		length = DefaultBroadcastLength
	}
	now := opts.Now.In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//Mustard//Stream Schedule//EN")
	cal.SetXWRCalName(opts.Name + " streams")
	cal.SetXWRTimezone(loc.String())

	for day, entries := range opts.Week {
		seen := make(map[string]bool)
		for _, t := range times(entries) {
			if seen[t] {
				continue
			}
			seen[t] = true

			minutes := minutesOf(t)
			rule, err := rrule.NewRRule(rrule.ROption{
				Freq:      rrule.WEEKLY,
				Byweekday: []rrule.Weekday{rruleDays[day]},
				Byhour:    []int{minutes / 60},
				Byminute:  []int{minutes % 60},
				Bysecond:  []int{0},
				Dtstart:   dayStart,
			})
			if err != nil {
				return "", fmt.Errorf("build rule for %s %s: %w", time.Weekday(day), t, err)
			}
			first := rule.After(now, true)
			if first.IsZero() {
				continue
			}

			recurrence := rrule.ROption{Freq: rrule.WEEKLY, Byweekday: []rrule.Weekday{rruleDays[day]}}
			tzid := &ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{loc.String()}}

			event := cal.AddEvent(fmt.Sprintf("%s-%d-%s@mustard", opts.ChannelID, day, strings.ReplaceAll(t, ":", "")))
			event.SetDtStampTime(opts.Now)
			event.SetProperty(ical.ComponentPropertyDtStart, first.Format("20060102T150405"), tzid)
			event.SetProperty(ical.ComponentPropertyDtEnd, first.Add(length).Format("20060102T150405"), tzid)
			event.SetSummary(fmt.Sprintf("%s goes live", opts.Name))
			event.AddRrule(recurrence.RRuleString())
		}
	}

	return cal.Serialize(), nil
}

// ImportICal reads weekly recurring events back into a Week. Events without
// a weekly BYDAY rule contribute their start weekday. Unreadable events are
// skipped.
func ImportICal(r io.Reader) (Week, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return Week{}, fmt.Errorf("parse calendar: %w", err)
	}

	var raw [7][]string
	for _, event := range cal.Events() {
		start := event.GetProperty(ical.ComponentPropertyDtStart)
		if start == nil {
			continue
		}
		at, ok := parseICalTime(start.Value)
		if !ok {
			continue
		}
		hhmm := at.Format("15:04")

		days := []int{int(at.Weekday())}
		if prop := event.GetProperty(ical.ComponentPropertyRrule); prop != nil {
			opt, err := rrule.StrToROption(prop.Value)
			if err == nil && opt.Freq == rrule.WEEKLY && len(opt.Byweekday) > 0 {
				days = days[:0]
				for _, wd := range opt.Byweekday {
					// rrule counts Monday as 0.
					days = append(days, (wd.Day()+1)%7)
				}
			}
		}
		for _, d := range days {
			raw[d] = append(raw[d], hhmm)
		}
	}

	var w Week
	for i := range raw {
		w[i] = timenorm.NormalizeDay(strings.Join(raw[i], " "))
	}
	return w, nil
}

func parseICalTime(s string) (time.Time, bool) {
	for _, layout := range []string{"20060102T150405Z", "20060102T150405"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "channel"
	}
	return out
}
