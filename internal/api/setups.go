/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/mustard/internal/confirm"
	"github.com/friendsincode/mustard/internal/events"
	"github.com/friendsincode/mustard/internal/models"
	"github.com/friendsincode/mustard/internal/twitch"
)

type setupRequest struct {
	Category   string   `json:"category"`
	CategoryID string   `json:"category_id"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	Tweet      string   `json:"tweet"`
}

func (a *API) handleSetupsList(w http.ResponseWriter, r *http.Request) {
	var setups []models.Setup
	if err := a.db.WithContext(r.Context()).
		Where("channel_id = ?", chi.URLParam(r, "channelID")).
		Order("created_at DESC").
		Find(&setups).Error; err != nil {
		a.logger.Error().Err(err).Msg("list setups failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, setups)
}

func (a *API) handleSetupsCreate(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	var req setupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.Category = strings.TrimSpace(req.Category)
	req.Title = strings.TrimSpace(req.Title)
	if req.Category == "" && req.Title == "" {
		writeError(w, http.StatusBadRequest, "category_or_title_required")
		return
	}

	setup := models.Setup{
		ID:         uuid.NewString(),
		ChannelID:  channel.ID,
		Category:   req.Category,
		CategoryID: strings.TrimSpace(req.CategoryID),
		Title:      req.Title,
		Tags:       models.CleanTags(req.Tags),
		Tweet:      req.Tweet,
	}
	if err := a.db.WithContext(r.Context()).Create(&setup).Error; err != nil {
		a.logger.Error().Err(err).Msg("create setup failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.bus.Publish(events.EventSetupCreated, events.Payload{"channel_id": channel.ID, "setup_id": setup.ID})
	writeJSON(w, http.StatusCreated, setup)
}

// handleSetupDelete needs two clicks on the same setup within the confirm
// window. The first answers 202, the second deletes and answers 204.
func (a *API) handleSetupDelete(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	setupID := chi.URLParam(r, "setupID")

	setup, ok := a.loadSetup(w, r, channelID, setupID)
	if !ok {
		return
	}

	key := "setup-delete:" + channelID
	if a.confirm.Request(key, setup.ID, a.now()) == confirm.Armed {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":                 confirm.Armed.String(),
			"setup_id":               setup.ID,
			"confirm_within_seconds": int(a.confirm.Window().Seconds()),
		})
		return
	}

	if err := a.db.WithContext(r.Context()).Delete(&models.Setup{}, "id = ?", setup.ID).Error; err != nil {
		a.logger.Error().Err(err).Msg("delete setup failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.bus.Publish(events.EventSetupDeleted, events.Payload{"channel_id": channelID, "setup_id": setup.ID})
	w.WriteHeader(http.StatusNoContent)
}

// handleSetupApply pushes a saved setup's metadata to Twitch and returns the
// setup so the client can load its announcement draft.
func (a *API) handleSetupApply(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}
	setup, ok := a.loadSetup(w, r, channel.ID, chi.URLParam(r, "setupID"))
	if !ok {
		return
	}
	if channel.TwitchID == "" {
		writeError(w, http.StatusConflict, "twitch_id_missing")
		return
	}

	update := twitch.ChannelUpdate{Tags: setup.Tags}
	if setup.Title != "" {
		update.Title = &setup.Title
	}
	if setup.CategoryID != "" {
		update.CategoryID = &setup.CategoryID
	}
	if err := a.twitch.ModifyChannel(r.Context(), channel.TwitchID, update); err != nil {
		a.writeTwitchError(w, err)
		return
	}

	a.bus.Publish(events.EventMetadataUpdate, events.Payload{"channel_id": channel.ID, "setup_id": setup.ID})
	writeJSON(w, http.StatusOK, setup)
}

func (a *API) loadSetup(w http.ResponseWriter, r *http.Request, channelID, setupID string) (*models.Setup, bool) {
	var setup models.Setup
	err := a.db.WithContext(r.Context()).First(&setup, "id = ? AND channel_id = ?", setupID, channelID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "setup_not_found")
			return nil, false
		}
		a.logger.Error().Err(err).Msg("load setup failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, false
	}
	return &setup, true
}
