/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/mustard/internal/events"
	"github.com/friendsincode/mustard/internal/schedule"
)

// handleScheduleExport exports the weekly schedule in iCal format.
func (a *API) handleScheduleExport(w http.ResponseWriter, r *http.Request) {
	result, err := a.exportSvc.ExportToICal(r.Context(), chi.URLParam(r, "channelID"), a.now())
	if err != nil {
		if errors.Is(err, schedule.ErrNoSchedule) {
			writeError(w, http.StatusNotFound, "schedule_not_configured")
			return
		}
		a.logger.Error().Err(err).Msg("schedule export failed")
		writeError(w, http.StatusInternalServerError, "failed to export schedule")
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Data)
}

// handleScheduleImport replaces the weekly times with those found in an
// uploaded iCal document.
func (a *API) handleScheduleImport(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	week, err := schedule.ImportICal(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_ical")
		return
	}

	stored, err := a.loadSchedule(r.Context(), channel.ID)
	if err != nil {
		a.logger.Error().Err(err).Msg("load schedule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	stored.Days = week.Days()
	if err := a.db.WithContext(r.Context()).Save(stored).Error; err != nil {
		a.logger.Error().Err(err).Msg("save schedule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.bus.Publish(events.EventScheduleUpdate, events.Payload{"channel_id": channel.ID})
	writeJSON(w, http.StatusOK, toScheduleResponse(channel, stored))
}
