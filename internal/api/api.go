/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/mustard/internal/announce"
	"github.com/friendsincode/mustard/internal/auth"
	"github.com/friendsincode/mustard/internal/confirm"
	"github.com/friendsincode/mustard/internal/events"
	"github.com/friendsincode/mustard/internal/models"
	"github.com/friendsincode/mustard/internal/schedule"
	"github.com/friendsincode/mustard/internal/twitch"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	jwtSecret []byte
	bus       *events.Bus
	announcer *announce.Service
	twitch    *twitch.Client
	exportSvc *schedule.ExportService
	confirm   *confirm.Tracker
	maxWeight int
	logger    zerolog.Logger
	now       func() time.Time

	// countdown frame interval
	tick time.Duration
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, bus *events.Bus, announcer *announce.Service, twitchClient *twitch.Client, exportSvc *schedule.ExportService, tracker *confirm.Tracker, maxWeight int, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		jwtSecret: jwtSecret,
		bus:       bus,
		announcer: announcer,
		twitch:    twitchClient,
		exportSvc: exportSvc,
		confirm:   tracker,
		maxWeight: maxWeight,
		logger:    logger.With().Str("component", "api").Logger(),
		now:       time.Now,
		tick:      time.Second,
	}
}

// Routes registers all API routes.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Bootstrap. Tokens are issued from the CLI.
		r.Post("/channels", a.handleChannelsCreate)
		r.Get("/channels", a.handleChannelsList)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))

			pr.Get("/categories", a.handleCategoriesSearch)
			pr.Post("/thread/split", a.handleThreadSplit)

			pr.Route("/channels/{channelID}", func(r chi.Router) {
				r.Use(auth.RequireChannel)

				r.Get("/", a.handleChannelGet)
				r.Patch("/", a.handleChannelUpdate)
				r.Get("/checklist", a.handleChecklist)

				r.Route("/setups", func(r chi.Router) {
					r.Get("/", a.handleSetupsList)
					r.Post("/", a.handleSetupsCreate)
					r.Post("/{setupID}/apply", a.handleSetupApply)
					r.Delete("/{setupID}", a.handleSetupDelete)
				})

				r.Get("/schedule", a.handleScheduleGet)
				r.Put("/schedule", a.handleSchedulePut)
				r.Get("/schedule/next", a.handleScheduleNext)
				r.Get("/schedule/upcoming", a.handleScheduleUpcoming)
				r.Get("/schedule/countdown", a.handleCountdown)
				r.Get("/schedule.ics", a.handleScheduleExport)
				r.Post("/schedule.ics", a.handleScheduleImport)

				r.Get("/metadata", a.handleMetadataGet)
				r.Patch("/metadata", a.handleMetadataUpdate)

				r.Route("/announcements", func(r chi.Router) {
					r.Get("/", a.handleAnnouncementsList)
					r.Post("/", a.handleAnnouncementsCreate)
					r.Delete("/{announcementID}", a.handleAnnouncementCancel)
				})
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadChannel fetches the {channelID} route channel, writing 404 if missing.
func (a *API) loadChannel(w http.ResponseWriter, r *http.Request) (*models.Channel, bool) {
	var channel models.Channel
	err := a.db.WithContext(r.Context()).First(&channel, "id = ?", chi.URLParam(r, "channelID")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "channel_not_found")
			return nil, false
		}
		a.logger.Error().Err(err).Msg("load channel failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, false
	}
	return &channel, true
}

func decodeJSON(r *http.Request, dest any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
