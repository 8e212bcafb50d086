/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"

	"github.com/friendsincode/mustard/internal/thread"
)

type splitRequest struct {
	Text      string `json:"text"`
	Cursor    *int   `json:"cursor"`
	MaxWeight int    `json:"max_weight"`
}

type splitSegment struct {
	thread.Segment
	Weight int `json:"weight"`
}

type splitResponse struct {
	Segments  []splitSegment `json:"segments"`
	Cursor    *thread.Cursor `json:"cursor,omitempty"`
	MaxWeight int            `json:"max_weight"`
}

// handleThreadSplit previews how text would be posted as a thread.
func (a *API) handleThreadSplit(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	maxWeight := req.MaxWeight
	if maxWeight == 0 {
		maxWeight = a.maxWeight
	}
	if maxWeight <= 0 {
		maxWeight = thread.DefaultMaxWeight
	}
	if maxWeight < 2 {
		writeError(w, http.StatusBadRequest, "invalid_max_weight")
		return
	}

	segments, err := thread.Split(req.Text, thread.TweetWeight(maxWeight))
	if err != nil {
		if errors.Is(err, thread.ErrStalled) {
			writeError(w, http.StatusUnprocessableEntity, "stalled")
			return
		}
		a.logger.Error().Err(err).Msg("thread split failed")
		writeError(w, http.StatusInternalServerError, "split_failed")
		return
	}

	resp := splitResponse{Segments: make([]splitSegment, 0, len(segments)), MaxWeight: maxWeight}
	for _, seg := range segments {
		weight, _ := thread.Weigh(seg.Text, maxWeight)
		resp.Segments = append(resp.Segments, splitSegment{Segment: seg, Weight: weight})
	}
	if req.Cursor != nil {
		cursor := thread.MapCursor(*req.Cursor, segments)
		resp.Cursor = &cursor
	}
	writeJSON(w, http.StatusOK, resp)
}
