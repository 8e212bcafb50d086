/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package announce

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Post is one announcement thread handed to a Poster.
type Post struct {
	AnnouncementID string    `json:"announcement_id"`
	ChannelID      string    `json:"channel_id"`
	Channel        string    `json:"channel"`
	Parts          []string  `json:"parts"`
	PostAt         time.Time `json:"post_at"`
	GoLive         bool      `json:"go_live"`
}

// Poster publishes announcement threads somewhere outside the process.
type Poster interface {
	Post(ctx context.Context, post Post) error
}

// WebhookPoster delivers posts as signed JSON to a relay endpoint that owns
// the social account credentials.
type WebhookPoster struct {
	URL    string
	Secret string

	client *http.Client
	logger zerolog.Logger
}

// NewWebhookPoster creates a webhook poster.
func NewWebhookPoster(url, secret string, logger zerolog.Logger) *WebhookPoster {
	return &WebhookPoster{
		URL:    url,
		Secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With().Str("component", "announce_webhook").Logger(),
	}
}

// Post implements Poster.
func (p *WebhookPoster) Post(ctx context.Context, post Post) error {
	body, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshal post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mustard-Announce/1.0")
	req.Header.Set("X-Mustard-Announcement", post.AnnouncementID)
	req.Header.Set("X-Mustard-Timestamp", timestamp)

	// Add HMAC signature if secret is configured
	if p.Secret != "" {
		req.Header.Set("X-Mustard-Signature", SignPayload(body, p.Secret))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver announcement: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("announce webhook returned status %d", resp.StatusCode)
	}

	p.logger.Debug().Str("announcement_id", post.AnnouncementID).Int("parts", len(post.Parts)).Int("status", resp.StatusCode).Msg("announcement delivered")
	return nil
}

// SignPayload creates an HMAC-SHA256 signature.
func SignPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a signature produced by SignPayload.
func VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(SignPayload(payload, secret)), []byte(signature))
}

// LogPoster only logs posts. It is used when no relay is configured.
type LogPoster struct {
	logger zerolog.Logger
}

// NewLogPoster creates a log-only poster.
func NewLogPoster(logger zerolog.Logger) *LogPoster {
	return &LogPoster{logger: logger.With().Str("component", "announce_log").Logger()}
}

// Post implements Poster.
func (p *LogPoster) Post(_ context.Context, post Post) error {
	for i, part := range post.Parts {
		p.logger.Info().
			Str("announcement_id", post.AnnouncementID).
			Str("channel_id", post.ChannelID).
			Int("part", i+1).
			Int("of", len(post.Parts)).
			Msg(part)
	}
	return nil
}
