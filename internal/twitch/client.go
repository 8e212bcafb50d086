/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package twitch talks to the Helix API for category search and channel
// metadata updates.
package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/friendsincode/mustard/internal/cache"
	"github.com/friendsincode/mustard/internal/telemetry"
)

// DefaultBaseURL is the Helix API root.
const DefaultBaseURL = "https://api.twitch.tv/helix"

// searchLimit is the page size requested from category search.
const searchLimit = 20

// searchTimeout bounds a coalesced category search.
const searchTimeout = 10 * time.Second

var (
	// ErrNotConfigured is returned when no client id or token is set.
	ErrNotConfigured = errors.New("twitch: client not configured")
	// ErrUnauthorized is returned when Helix rejects the token.
	ErrUnauthorized = errors.New("twitch: unauthorized")
	// ErrNotFound is returned when a broadcaster does not exist.
	ErrNotFound = errors.New("twitch: not found")
)

// APIError carries an unexpected Helix response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitch: status %d: %s", e.Status, e.Message)
}

// Category is a game or category a stream can be filed under.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BoxArtURL string `json:"box_art_url"`
}

// ChannelInfo is the live metadata of a broadcaster.
type ChannelInfo struct {
	BroadcasterID string   `json:"broadcaster_id"`
	Login         string   `json:"broadcaster_login"`
	CategoryID    string   `json:"game_id"`
	Category      string   `json:"game_name"`
	Title         string   `json:"title"`
	Tags          []string `json:"tags"`
}

// ChannelUpdate changes stream metadata. Nil fields are left alone.
type ChannelUpdate struct {
	CategoryID *string  `json:"game_id,omitempty"`
	Title      *string  `json:"title,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ChannelUpdate) Empty() bool {
	return u.CategoryID == nil && u.Title == nil && u.Tags == nil
}

// Config configures a Client.
type Config struct {
	BaseURL  string
	ClientID string
	Token    string
}

// Client is a minimal Helix client.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	ClientID   string
	Token      string

	cache  *cache.Cache
	logger zerolog.Logger
	group  singleflight.Group
}

// New creates a client. A nil cache disables caching.
func New(cfg Config, c *cache.Cache, logger zerolog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if c == nil {
		c = cache.Disabled(logger)
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		BaseURL:    baseURL,
		ClientID:   cfg.ClientID,
		Token:      cfg.Token,
		cache:      c,
		logger:     logger.With().Str("component", "twitch").Logger(),
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.ClientID != "" && c.Token != ""
}

// SearchCategories looks up categories matching query. Concurrent searches
// for the same query share one request.
func (c *Client) SearchCategories(ctx context.Context, query string) ([]Category, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Category{}, nil
	}
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	if cached, ok := c.cache.GetCategories(ctx, query); ok {
		out := make([]Category, len(cached))
		for i, cat := range cached {
			out[i] = Category(cat)
		}
		return out, nil
	}

	// The shared request outlives any single caller.
	ch := c.group.DoChan(cache.CategoryKey(query), func() (interface{}, error) {
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), searchTimeout)
		defer cancel()

		params := url.Values{}
		params.Set("query", query)
		params.Set("first", strconv.Itoa(searchLimit))

		var resp struct {
			Data []Category `json:"data"`
		}
		if err := c.do(reqCtx, http.MethodGet, "/search/categories", params, nil, &resp); err != nil {
			return nil, err
		}

		toCache := make([]cache.CachedCategory, len(resp.Data))
		for i, cat := range resp.Data {
			toCache[i] = cache.CachedCategory(cat)
		}
		if err := c.cache.SetCategories(reqCtx, query, toCache); err != nil {
			c.logger.Debug().Err(err).Str("query", query).Msg("failed to cache category search")
		}
		return resp.Data, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		c.logger.Debug().Str("query", query).Msg("category search coalesced")
	}

	v := res.Val
	categories := v.([]Category)
	out := make([]Category, len(categories))
	copy(out, categories)
	return out, nil
}

// GetChannel fetches live metadata for a broadcaster.
func (c *Client) GetChannel(ctx context.Context, broadcasterID string) (*ChannelInfo, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	if cached, ok := c.cache.GetChannel(ctx, broadcasterID); ok {
		info := ChannelInfo(*cached)
		return &info, nil
	}

	params := url.Values{}
	params.Set("broadcaster_id", broadcasterID)

	var resp struct {
		Data []ChannelInfo `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/channels", params, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrNotFound
	}

	info := resp.Data[0]
	cached := cache.CachedChannel(info)
	if err := c.cache.SetChannel(ctx, &cached); err != nil {
		c.logger.Debug().Err(err).Str("broadcaster_id", broadcasterID).Msg("failed to cache channel")
	}
	return &info, nil
}

// ModifyChannel applies update to the broadcaster's stream metadata.
func (c *Client) ModifyChannel(ctx context.Context, broadcasterID string, update ChannelUpdate) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if update.Empty() {
		return nil
	}

	params := url.Values{}
	params.Set("broadcaster_id", broadcasterID)

	if err := c.do(ctx, http.MethodPatch, "/channels", params, update, nil); err != nil {
		return err
	}
	if err := c.cache.InvalidateChannel(ctx, broadcasterID); err != nil {
		c.logger.Debug().Err(err).Str("broadcaster_id", broadcasterID).Msg("failed to invalidate channel cache")
	}

	c.logger.Info().Str("broadcaster_id", broadcasterID).Msg("channel metadata updated")
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, dest any) (err error) {
	endpoint := c.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	ctx, span := telemetry.StartSpan(ctx, "twitch", "request")
	telemetry.SetSpanAttributes(span, map[string]any{"http.method": method, "twitch.endpoint": path})
	defer func() { telemetry.EndSpan(span, err) }()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Client-Id", c.ClientID)
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		telemetry.TwitchRequestsTotal.WithLabelValues(path, "error").Inc()
		return fmt.Errorf("twitch %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	telemetry.TwitchRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &APIError{Status: resp.StatusCode, Message: errorMessage(payload)}
	}

	if dest == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(payload))
}
