/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/mustard/internal/announce"
)

type announcementRequest struct {
	Text string `json:"text"`
	// PostAt is RFC 3339. Empty posts immediately.
	PostAt string `json:"post_at"`
}

func (a *API) handleAnnouncementsList(w http.ResponseWriter, r *http.Request) {
	list, err := a.announcer.List(r.Context(), chi.URLParam(r, "channelID"))
	if err != nil {
		a.logger.Error().Err(err).Msg("list announcements failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleAnnouncementsCreate(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	var req announcementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	postAt := a.now()
	if req.PostAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.PostAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_post_at")
			return
		}
		postAt = parsed
	}

	ann, err := a.announcer.Schedule(r.Context(), channel.ID, req.Text, postAt)
	if err != nil {
		if errors.Is(err, announce.ErrEmpty) {
			writeError(w, http.StatusBadRequest, "empty_announcement")
			return
		}
		a.logger.Error().Err(err).Msg("schedule announcement failed")
		writeError(w, http.StatusInternalServerError, "announce_failed")
		return
	}
	writeJSON(w, http.StatusCreated, ann)
}

func (a *API) handleAnnouncementCancel(w http.ResponseWriter, r *http.Request) {
	err := a.announcer.Cancel(r.Context(), chi.URLParam(r, "channelID"), chi.URLParam(r, "announcementID"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, announce.ErrNotFound):
		writeError(w, http.StatusNotFound, "announcement_not_found")
	case errors.Is(err, announce.ErrNotPending):
		writeError(w, http.StatusConflict, "announcement_not_pending")
	default:
		a.logger.Error().Err(err).Msg("cancel announcement failed")
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}
