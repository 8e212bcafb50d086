/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package announce queues stream announcements and posts them on time.
package announce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/mustard/internal/events"
	"github.com/friendsincode/mustard/internal/models"
	"github.com/friendsincode/mustard/internal/schedule"
	"github.com/friendsincode/mustard/internal/telemetry"
	"github.com/friendsincode/mustard/internal/thread"
)

// GoLiveSpec is how often schedules are checked for upcoming broadcasts.
const GoLiveSpec = "@every 1m"

var (
	// ErrEmpty is returned when an announcement has nothing to send.
	ErrEmpty = errors.New("announcement is empty")
	// ErrNotFound is returned for unknown announcements.
	ErrNotFound = errors.New("announcement not found")
	// ErrNotPending is returned when cancelling an announcement that already left the queue.
	ErrNotPending = errors.New("announcement is no longer pending")
)

// Service persists announcements, splits them into threads and posts them
// when due.
type Service struct {
	db        *gorm.DB
	bus       *events.Bus
	poster    Poster
	queue     *Queue
	maxWeight int
	logger    zerolog.Logger
	now       func() time.Time

	// deliveries run detached from request contexts
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates an announcement service.
func NewService(db *gorm.DB, bus *events.Bus, poster Poster, maxWeight int, logger zerolog.Logger) *Service {
	if maxWeight <= 0 {
		maxWeight = thread.DefaultMaxWeight
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		db:        db,
		bus:       bus,
		poster:    poster,
		queue:     NewQueue(logger),
		maxWeight: maxWeight,
		logger:    logger.With().Str("component", "announce").Logger(),
		now:       time.Now,
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Start runs the queue, re-queues pending announcements and registers the
// go-live check.
func (s *Service) Start(ctx context.Context) error {
	s.queue.Start()

	var pending []models.Announcement
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.AnnouncementPending).
		Order("post_at ASC").
		Find(&pending).Error; err != nil {
		return fmt.Errorf("load pending announcements: %w", err)
	}
	for _, ann := range pending {
		s.enqueue(ann.ID, ann.PostAt)
	}

	if _, err := s.queue.Every(GoLiveSpec, func() {
		if err := s.CheckGoLive(s.baseCtx, s.now()); err != nil {
			s.logger.Error().Err(err).Msg("go-live check failed")
		}
	}); err != nil {
		return fmt.Errorf("register go-live check: %w", err)
	}

	s.logger.Info().Int("requeued", len(pending)).Msg("announcement service started")
	return nil
}

// Stop halts the queue and waits for in-flight deliveries.
func (s *Service) Stop() {
	<-s.queue.Stop().Done()
	s.cancel()
	s.wg.Wait()
	s.logger.Info().Msg("announcement service stopped")
}

// Split returns the posts text would be sent as.
func (s *Service) Split(text string) ([]thread.Segment, error) {
	return thread.Split(text, thread.TweetWeight(s.maxWeight))
}

// Schedule splits text and queues it for postAt.
func (s *Service) Schedule(ctx context.Context, channelID, text string, postAt time.Time) (*models.Announcement, error) {
	return s.create(ctx, channelID, text, postAt, nil)
}

func (s *Service) create(ctx context.Context, channelID, text string, postAt time.Time, occurrence *time.Time) (*models.Announcement, error) {
	segments, err := s.Split(text)
	if err != nil {
		return nil, fmt.Errorf("split announcement: %w", err)
	}
	parts := thread.Sendable(segments)
	if len(parts) == 0 {
		return nil, ErrEmpty
	}
	telemetry.ThreadSegmentsTotal.Observe(float64(len(parts)))

	ann := &models.Announcement{
		ID:         uuid.NewString(),
		ChannelID:  channelID,
		PostAt:     postAt.UTC(),
		Parts:      parts,
		Status:     models.AnnouncementPending,
		Occurrence: occurrence,
	}
	if err := s.db.WithContext(ctx).Create(ann).Error; err != nil {
		return nil, fmt.Errorf("save announcement: %w", err)
	}

	s.enqueue(ann.ID, ann.PostAt)
	s.bus.Publish(events.EventAnnounceQueued, events.Payload{
		"channel_id":      channelID,
		"announcement_id": ann.ID,
		"post_at":         ann.PostAt,
		"parts":           len(parts),
	})

	s.logger.Info().Str("channel_id", channelID).Str("announcement_id", ann.ID).Time("post_at", ann.PostAt).Int("parts", len(parts)).Msg("announcement queued")
	return ann, nil
}

// List returns a channel's announcements, newest first.
func (s *Service) List(ctx context.Context, channelID string) ([]models.Announcement, error) {
	var out []models.Announcement
	err := s.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("post_at DESC").
		Find(&out).Error
	return out, err
}

// Cancel withdraws a pending announcement.
func (s *Service) Cancel(ctx context.Context, channelID, id string) error {
	var ann models.Announcement
	if err := s.db.WithContext(ctx).First(&ann, "id = ? AND channel_id = ?", id, channelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if ann.Done() {
		return ErrNotPending
	}

	s.queue.Remove(id)
	result := s.db.WithContext(ctx).Model(&models.Announcement{}).
		Where("id = ? AND status = ?", id, models.AnnouncementPending).
		Update("status", models.AnnouncementCancelled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotPending
	}

	telemetry.AnnouncementsTotal.WithLabelValues(string(models.AnnouncementCancelled)).Inc()
	s.bus.Publish(events.EventAnnounceRemoved, events.Payload{"channel_id": channelID, "announcement_id": id})
	return nil
}

// Pending lists queued announcement ids in due order.
func (s *Service) Pending() []Pending {
	return s.queue.Pending()
}

func (s *Service) enqueue(id string, at time.Time) {
	s.queue.Put(id, at, func() {
		s.wg.Add(1)
		defer s.wg.Done()
		s.deliver(s.baseCtx, id)
	})
}

func (s *Service) deliver(ctx context.Context, id string) {
	var ann models.Announcement
	if err := s.db.WithContext(ctx).Preload("Channel").First(&ann, "id = ?", id).Error; err != nil {
		s.logger.Error().Err(err).Str("announcement_id", id).Msg("load announcement for delivery")
		return
	}
	if ann.Done() {
		return
	}

	post := Post{
		AnnouncementID: ann.ID,
		ChannelID:      ann.ChannelID,
		Parts:          ann.Parts,
		PostAt:         ann.PostAt,
		GoLive:         ann.Occurrence != nil,
	}
	if ann.Channel != nil {
		post.Channel = ann.Channel.Name()
	}

	spanCtx, span := telemetry.StartSpan(ctx, "announce", "deliver")
	telemetry.SetSpanAttributes(span, map[string]any{
		"announcement.id": ann.ID,
		"channel.id":      ann.ChannelID,
		"parts":           len(ann.Parts),
		"go_live":         post.GoLive,
	})
	postErr := s.poster.Post(spanCtx, post)
	telemetry.EndSpan(span, postErr)

	now := s.now().UTC()
	updates := map[string]any{}
	if err := postErr; err != nil {
		updates["status"] = models.AnnouncementFailed
		updates["error"] = err.Error()
		s.logger.Warn().Err(err).Str("announcement_id", id).Msg("announcement delivery failed")
	} else {
		updates["status"] = models.AnnouncementPosted
		updates["posted_at"] = now
	}

	result := s.db.WithContext(ctx).Model(&models.Announcement{}).
		Where("id = ? AND status = ?", id, models.AnnouncementPending).
		Updates(updates)
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Str("announcement_id", id).Msg("record announcement status")
		return
	}
	if result.RowsAffected == 0 {
		s.logger.Warn().Str("announcement_id", id).Msg("announcement no longer pending after delivery, status not recorded")
		return
	}

	status := updates["status"].(models.AnnouncementStatus)
	telemetry.AnnouncementsTotal.WithLabelValues(string(status)).Inc()

	eventType := events.EventAnnouncePosted
	if status == models.AnnouncementFailed {
		eventType = events.EventAnnounceFailed
	}
	s.bus.Publish(eventType, events.Payload{
		"channel_id":      ann.ChannelID,
		"announcement_id": ann.ID,
		"status":          string(status),
	})
}

// CheckGoLive queues the go-live template of every channel whose next
// broadcast starts within its lead time. Each occurrence is announced once.
func (s *Service) CheckGoLive(ctx context.Context, now time.Time) error {
	var schedules []models.Schedule
	if err := s.db.WithContext(ctx).
		Preload("Channel").
		Where("announce_template <> ''").
		Find(&schedules).Error; err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}

	for _, sched := range schedules {
		if sched.Channel == nil {
			continue
		}
		loc := sched.Channel.Location()
		occ, ok := schedule.NextOccurrence(schedule.Week(sched.Week()), now.In(loc), 0)
		if !ok {
			continue
		}
		lead := int(sched.AnnounceLead() / time.Second)
		if occ.SecondsUntil <= 0 || occ.SecondsUntil > lead {
			continue
		}

		at := occ.At.Truncate(time.Minute).UTC()
		var existing int64
		if err := s.db.WithContext(ctx).Model(&models.Announcement{}).
			Where("channel_id = ? AND occurrence = ?", sched.ChannelID, at).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check go-live announcement: %w", err)
		}
		if existing > 0 {
			continue
		}

		text := RenderTemplate(sched.AnnounceTemplate, *sched.Channel, occ)
		if _, err := s.create(ctx, sched.ChannelID, text, now, &at); err != nil {
			s.logger.Warn().Err(err).Str("channel_id", sched.ChannelID).Msg("queue go-live announcement")
			continue
		}
	}
	return nil
}

// RenderTemplate fills {channel}, {time}, {day} and {countdown} placeholders.
func RenderTemplate(template string, channel models.Channel, occ schedule.Occurrence) string {
	minutes := (occ.SecondsUntil + 59) / 60
	return strings.NewReplacer(
		"{channel}", channel.Name(),
		"{login}", channel.Login,
		"{time}", occ.Time,
		"{day}", schedule.Label(occ),
		"{countdown}", fmt.Sprintf("%d min", minutes),
	).Replace(template)
}
