/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AnnouncementStatus tracks delivery of a queued announcement.
type AnnouncementStatus string

const (
	AnnouncementPending   AnnouncementStatus = "pending"
	AnnouncementPosted    AnnouncementStatus = "posted"
	AnnouncementFailed    AnnouncementStatus = "failed"
	AnnouncementCancelled AnnouncementStatus = "cancelled"
)

// Announcement is a thread of posts queued for delivery at PostAt.
type Announcement struct {
	ID        string             `gorm:"type:varchar(36);primaryKey" json:"id"`
	ChannelID string             `gorm:"type:varchar(36);index:idx_announcements_channel;not null" json:"channel_id"`
	PostAt    time.Time          `gorm:"index:idx_announcements_post_at;not null" json:"post_at"`
	Parts     []string           `gorm:"type:text;serializer:json" json:"parts"`
	Status    AnnouncementStatus `gorm:"type:varchar(16);index;not null;default:'pending'" json:"status"`
	Error     string             `gorm:"type:text" json:"error,omitempty"`
	// Occurrence marks go-live announcements so each broadcast is posted once.
	Occurrence *time.Time `gorm:"index" json:"occurrence,omitempty"`
	PostedAt   *time.Time `json:"posted_at,omitempty"`

	Channel *Channel `gorm:"foreignKey:ChannelID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for GORM.
func (Announcement) TableName() string {
	return "announcements"
}

// Done reports whether the announcement has left the queue.
func (a Announcement) Done() bool {
	return a.Status != AnnouncementPending
}
