/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/mustard/internal/events"
	"github.com/friendsincode/mustard/internal/schedule"
	"github.com/friendsincode/mustard/internal/telemetry"
)

type countdownFrame struct {
	Type string `json:"type"`
	nextResponse
}

// handleCountdown streams the next broadcast once per tick and immediately
// after the channel's schedule changes.
func (a *API) handleCountdown(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")

	var offset time.Duration
	if raw := r.URL.Query().Get("offset"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 || time.Duration(secs)*time.Second > maxOffset {
			writeError(w, http.StatusBadRequest, "invalid_offset")
			return
		}
		offset = time.Duration(secs) * time.Second
	}

	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	// Track WebSocket connection
	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	// Clients never send; CloseRead cancels ctx when they go away.
	ctx := conn.CloseRead(r.Context())

	updates := a.bus.Subscribe(events.EventScheduleUpdate)
	defer a.bus.Unsubscribe(events.EventScheduleUpdate, updates)

	loc := channel.Location()
	week, err := a.countdownWeek(ctx, channelID)
	if err != nil {
		a.logger.Error().Err(err).Str("channel_id", channelID).Msg("load schedule for countdown")
		return
	}

	send := func() error {
		frame := countdownFrame{Type: "countdown", nextResponse: nextFor(week, a.now().In(loc), offset, loc)}
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return wsjson.Write(writeCtx, conn, frame)
	}

	if err := send(); err != nil {
		return
	}

	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case payload, open := <-updates:
			if !open {
				return
			}
			if payload["channel_id"] != channelID {
				continue
			}
			if week, err = a.countdownWeek(ctx, channelID); err != nil {
				a.logger.Error().Err(err).Str("channel_id", channelID).Msg("reload schedule for countdown")
				return
			}
			if err := send(); err != nil {
				return
			}
		case <-ticker.C:
			if err := send(); err != nil {
				a.logger.Debug().Err(err).Str("channel_id", channelID).Msg("countdown write failed")
				return
			}
		}
	}
}

func (a *API) countdownWeek(ctx context.Context, channelID string) (schedule.Week, error) {
	stored, err := a.loadSchedule(ctx, channelID)
	if err != nil {
		return schedule.Week{}, err
	}
	return schedule.Week(stored.Week()), nil
}
