/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/mustard/internal/announce"
	"github.com/friendsincode/mustard/internal/api"
	"github.com/friendsincode/mustard/internal/cache"
	"github.com/friendsincode/mustard/internal/config"
	"github.com/friendsincode/mustard/internal/confirm"
	"github.com/friendsincode/mustard/internal/db"
	"github.com/friendsincode/mustard/internal/events"
	"github.com/friendsincode/mustard/internal/models"
	"github.com/friendsincode/mustard/internal/schedule"
	"github.com/friendsincode/mustard/internal/telemetry"
	"github.com/friendsincode/mustard/internal/twitch"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	cache     *cache.Cache
	api       *api.API
	announcer *announce.Service
	bus       *events.Bus

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("mustard-api"))
	router.Use(telemetry.MetricsMiddleware)
	// The countdown WebSocket is long-lived.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	if err := srv.startBackgroundWorkers(); err != nil {
		srv.Close()
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 for the countdown stream; the middleware
		// timeout covers regular routes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database

	// Redis caches category searches and channel metadata.
	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		if s.cfg.CacheTTL > 0 {
			cacheCfg.CategoryTTL = s.cfg.CacheTTL
		}
		c, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = c
			s.DeferClose(func() error { return c.Close() })
		}
	}

	twitchClient := twitch.New(twitch.Config{
		BaseURL:  s.cfg.TwitchAPIURL,
		ClientID: s.cfg.TwitchClientID,
		Token:    s.cfg.TwitchToken,
	}, s.cache, s.logger)
	if !twitchClient.Configured() {
		s.logger.Warn().Msg("twitch credentials not set, metadata and category search are disabled")
	}

	var poster announce.Poster
	if s.cfg.AnnounceWebhookURL != "" {
		poster = announce.NewWebhookPoster(s.cfg.AnnounceWebhookURL, s.cfg.AnnounceWebhookSecret, s.logger)
	} else {
		s.logger.Warn().Msg("no announce webhook configured, announcements will only be logged")
		poster = announce.NewLogPoster(s.logger)
	}
	s.announcer = announce.NewService(database, s.bus, poster, s.cfg.AnnounceMaxWeight, s.logger)

	s.api = api.New(
		database,
		[]byte(s.cfg.JWTSigningKey),
		s.bus,
		s.announcer,
		twitchClient,
		schedule.NewExportService(database, s.logger),
		confirm.NewTracker(s.cfg.ConfirmWindow),
		s.cfg.AnnounceMaxWeight,
		s.logger,
	)

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.DeferClose(func() error {
		s.announcer.Stop()
		return nil
	})
	if err := s.announcer.Start(ctx); err != nil {
		return fmt.Errorf("start announcer: %w", err)
	}

	// Start database metrics updater
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
	return nil
}

// runCacheInvalidationListener drops cached Twitch metadata when a channel
// is edited.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	channelUpdated := s.bus.Subscribe(events.EventChannelUpdate)
	metadataUpdated := s.bus.Subscribe(events.EventMetadataUpdate)
	defer func() {
		s.bus.Unsubscribe(events.EventChannelUpdate, channelUpdated)
		s.bus.Unsubscribe(events.EventMetadataUpdate, metadataUpdated)
	}()

	s.logger.Debug().Msg("cache invalidation listener started")

	for {
		var payload events.Payload
		select {
		case <-ctx.Done():
			return
		case payload = <-channelUpdated:
		case payload = <-metadataUpdated:
		}

		channelID, _ := payload["channel_id"].(string)
		var channel models.Channel
		if err := s.db.WithContext(ctx).Select("twitch_id").First(&channel, "id = ?", channelID).Error; err != nil || channel.TwitchID == "" {
			continue
		}
		if err := s.cache.InvalidateChannel(ctx, channel.TwitchID); err != nil {
			s.logger.Debug().Err(err).Str("channel_id", channelID).Msg("channel cache invalidation failed")
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
