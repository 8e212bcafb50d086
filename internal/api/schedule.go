/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/mustard/internal/events"
	"github.com/friendsincode/mustard/internal/models"
	"github.com/friendsincode/mustard/internal/schedule"
)

const (
	defaultUpcoming = 5
	maxUpcoming     = 50
	// Longest pre-announcement offset accepted by /schedule/next.
	maxOffset = 7 * 24 * time.Hour
)

type scheduleRequest struct {
	Days                []string `json:"days"`
	AnnounceLeadMinutes *int     `json:"announce_lead_minutes"`
	AnnounceTemplate    *string  `json:"announce_template"`
}

type scheduleResponse struct {
	ChannelID           string   `json:"channel_id"`
	Timezone            string   `json:"timezone"`
	Days                []string `json:"days"`
	AnnounceLeadMinutes int      `json:"announce_lead_minutes"`
	AnnounceTemplate    string   `json:"announce_template"`
}

type nextResponse struct {
	Scheduled  bool                 `json:"scheduled"`
	Occurrence *schedule.Occurrence `json:"occurrence,omitempty"`
	Label      string               `json:"label,omitempty"`
	Timezone   string               `json:"timezone"`
}

// loadSchedule returns the stored schedule, or an unsaved empty one.
func (a *API) loadSchedule(ctx context.Context, channelID string) (*models.Schedule, error) {
	var stored models.Schedule
	err := a.db.WithContext(ctx).First(&stored, "channel_id = ?", channelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Schedule{
			ChannelID:           channelID,
			Days:                make([]string, 7),
			AnnounceLeadMinutes: models.DefaultAnnounceLeadMinutes,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (a *API) handleScheduleGet(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}
	stored, err := a.loadSchedule(r.Context(), channel.ID)
	if err != nil {
		a.logger.Error().Err(err).Msg("load schedule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(channel, stored))
}

// handleSchedulePut replaces the weekly schedule. Every day is normalized to
// sorted canonical times before it is stored.
func (a *API) handleSchedulePut(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.Days) > 7 {
		writeError(w, http.StatusBadRequest, "too_many_days")
		return
	}
	if req.AnnounceLeadMinutes != nil && (*req.AnnounceLeadMinutes < 1 || *req.AnnounceLeadMinutes > 24*60) {
		writeError(w, http.StatusBadRequest, "invalid_announce_lead")
		return
	}

	stored, err := a.loadSchedule(r.Context(), channel.ID)
	if err != nil {
		a.logger.Error().Err(err).Msg("load schedule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	stored.Days = schedule.ParseWeek(req.Days).Normalized().Days()
	if req.AnnounceLeadMinutes != nil {
		stored.AnnounceLeadMinutes = *req.AnnounceLeadMinutes
	}
	if req.AnnounceTemplate != nil {
		stored.AnnounceTemplate = *req.AnnounceTemplate
	}

	if err := a.db.WithContext(r.Context()).Save(stored).Error; err != nil {
		a.logger.Error().Err(err).Msg("save schedule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.bus.Publish(events.EventScheduleUpdate, events.Payload{"channel_id": channel.ID})
	a.logger.Info().Str("channel_id", channel.ID).Strs("days", stored.Days).Msg("schedule updated")
	writeJSON(w, http.StatusOK, toScheduleResponse(channel, stored))
}

// handleScheduleNext answers the next broadcast. offset (seconds) shifts the
// reference instant back so a countdown can fire ahead of the real time.
func (a *API) handleScheduleNext(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	var offset time.Duration
	if raw := r.URL.Query().Get("offset"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 || time.Duration(secs)*time.Second > maxOffset {
			writeError(w, http.StatusBadRequest, "invalid_offset")
			return
		}
		offset = time.Duration(secs) * time.Second
	}

	stored, err := a.loadSchedule(r.Context(), channel.ID)
	if err != nil {
		a.logger.Error().Err(err).Msg("load schedule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	loc := channel.Location()
	writeJSON(w, http.StatusOK, nextFor(schedule.Week(stored.Week()), a.now().In(loc), offset, loc))
}

func (a *API) handleScheduleUpcoming(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	n := defaultUpcoming
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxUpcoming {
			writeError(w, http.StatusBadRequest, "invalid_n")
			return
		}
		n = parsed
	}

	stored, err := a.loadSchedule(r.Context(), channel.ID)
	if err != nil {
		a.logger.Error().Err(err).Msg("load schedule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	loc := channel.Location()
	occurrences := schedule.Upcoming(schedule.Week(stored.Week()), a.now().In(loc), n)
	items := make([]map[string]any, 0, len(occurrences))
	for _, occ := range occurrences {
		items = append(items, map[string]any{"occurrence": occ, "label": schedule.Label(occ)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"timezone": loc.String(), "upcoming": items})
}

func nextFor(week schedule.Week, now time.Time, offset time.Duration, loc *time.Location) nextResponse {
	occ, ok := schedule.NextOccurrence(week, now, offset)
	if !ok {
		return nextResponse{Timezone: loc.String()}
	}
	return nextResponse{Scheduled: true, Occurrence: &occ, Label: schedule.Label(occ), Timezone: loc.String()}
}

func toScheduleResponse(channel *models.Channel, stored *models.Schedule) scheduleResponse {
	week := stored.Week()
	return scheduleResponse{
		ChannelID:           channel.ID,
		Timezone:            channel.Location().String(),
		Days:                week[:],
		AnnounceLeadMinutes: stored.AnnounceLeadMinutes,
		AnnounceTemplate:    stored.AnnounceTemplate,
	}
}
