/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/mustard/internal/events"
	"github.com/friendsincode/mustard/internal/models"
)

type channelRequest struct {
	TwitchID    *string `json:"twitch_id"`
	Login       *string `json:"login"`
	DisplayName *string `json:"display_name"`
	Timezone    *string `json:"timezone"`
	Checklist   *string `json:"checklist"`
}

// apply copies set fields onto channel. It returns an error code on invalid input.
func (req channelRequest) apply(channel *models.Channel) string {
	if req.TwitchID != nil {
		channel.TwitchID = strings.TrimSpace(*req.TwitchID)
	}
	if req.Login != nil {
		channel.Login = strings.ToLower(strings.TrimSpace(*req.Login))
	}
	if req.DisplayName != nil {
		channel.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Timezone != nil {
		tz := strings.TrimSpace(*req.Timezone)
		if tz == "" {
			tz = "UTC"
		}
		if _, err := time.LoadLocation(tz); err != nil {
			return "invalid_timezone"
		}
		channel.Timezone = tz
	}
	if req.Checklist != nil {
		channel.Checklist = *req.Checklist
	}
	return ""
}

func (a *API) handleChannelsList(w http.ResponseWriter, r *http.Request) {
	var channels []models.Channel
	if err := a.db.WithContext(r.Context()).Order("created_at ASC").Find(&channels).Error; err != nil {
		a.logger.Error().Err(err).Msg("list channels failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (a *API) handleChannelsCreate(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Login == nil || strings.TrimSpace(*req.Login) == "" {
		writeError(w, http.StatusBadRequest, "login_required")
		return
	}

	channel := models.Channel{ID: uuid.NewString(), Timezone: "UTC"}
	if code := req.apply(&channel); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}
	if err := a.db.WithContext(r.Context()).Create(&channel).Error; err != nil {
		a.logger.Error().Err(err).Msg("create channel failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.logger.Info().Str("channel_id", channel.ID).Str("login", channel.Login).Msg("channel created")
	writeJSON(w, http.StatusCreated, channel)
}

func (a *API) handleChannelGet(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, channel)
}

func (a *API) handleChannelUpdate(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	var req channelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Login != nil && strings.TrimSpace(*req.Login) == "" {
		writeError(w, http.StatusBadRequest, "login_required")
		return
	}
	if code := req.apply(channel); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	if err := a.db.WithContext(r.Context()).Save(channel).Error; err != nil {
		a.logger.Error().Err(err).Msg("update channel failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.bus.Publish(events.EventChannelUpdate, events.Payload{"channel_id": channel.ID})
	writeJSON(w, http.StatusOK, channel)
}

func (a *API) handleChecklist(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": channel.ChecklistItems()})
}
