/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/friendsincode/mustard/internal/events"
	"github.com/friendsincode/mustard/internal/models"
	"github.com/friendsincode/mustard/internal/twitch"
)

type metadataRequest struct {
	CategoryID *string  `json:"category_id"`
	Title      *string  `json:"title"`
	Tags       []string `json:"tags"`
}

func (a *API) handleMetadataGet(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}
	if channel.TwitchID == "" {
		writeError(w, http.StatusConflict, "twitch_id_missing")
		return
	}

	info, err := a.twitch.GetChannel(r.Context(), channel.TwitchID)
	if err != nil {
		a.writeTwitchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *API) handleMetadataUpdate(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}
	if channel.TwitchID == "" {
		writeError(w, http.StatusConflict, "twitch_id_missing")
		return
	}

	var req metadataRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	update := twitch.ChannelUpdate{CategoryID: req.CategoryID, Title: req.Title}
	if req.Tags != nil {
		update.Tags = models.CleanTags(req.Tags)
	}
	if update.Empty() {
		writeError(w, http.StatusBadRequest, "nothing_to_update")
		return
	}

	if err := a.twitch.ModifyChannel(r.Context(), channel.TwitchID, update); err != nil {
		a.writeTwitchError(w, err)
		return
	}

	a.bus.Publish(events.EventMetadataUpdate, events.Payload{"channel_id": channel.ID})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCategoriesSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, []twitch.Category{})
		return
	}

	categories, err := a.twitch.SearchCategories(r.Context(), query)
	if err != nil {
		a.writeTwitchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (a *API) writeTwitchError(w http.ResponseWriter, err error) {
	var apiErr *twitch.APIError
	switch {
	case errors.Is(err, twitch.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "twitch_not_configured")
	case errors.Is(err, twitch.ErrNotFound):
		writeError(w, http.StatusNotFound, "twitch_channel_not_found")
	case errors.Is(err, twitch.ErrUnauthorized):
		writeError(w, http.StatusBadGateway, "twitch_unauthorized")
	case errors.As(err, &apiErr):
		a.logger.Warn().Int("status", apiErr.Status).Str("message", apiErr.Message).Msg("twitch request rejected")
		writeError(w, http.StatusBadGateway, "twitch_error")
	default:
		a.logger.Error().Err(err).Msg("twitch request failed")
		writeError(w, http.StatusBadGateway, "twitch_unavailable")
	}
}
