/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// DefaultAnnounceLeadMinutes is how long before a broadcast the go-live
// template is posted when a schedule does not say otherwise.
const DefaultAnnounceLeadMinutes = 10

// Schedule stores a channel's recurring weekly broadcast times. Days holds
// seven entries, Sunday first, each a space separated list of "HH:MM" times.
type Schedule struct {
	ChannelID           string   `gorm:"type:varchar(36);primaryKey" json:"channel_id"`
	Days                []string `gorm:"type:text;serializer:json" json:"days"`
	AnnounceLeadMinutes int      `gorm:"not null;default:10" json:"announce_lead_minutes"`
	AnnounceTemplate    string   `gorm:"type:text" json:"announce_template"`

	Channel *Channel `gorm:"foreignKey:ChannelID" json:"-"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Schedule) TableName() string {
	return "schedules"
}

// Week returns Days padded or truncated to exactly seven entries.
func (s Schedule) Week() [7]string {
	var w [7]string
	copy(w[:], s.Days)
	return w
}

// AnnounceLead returns the lead time as a duration.
func (s Schedule) AnnounceLead() time.Duration {
	if s.AnnounceLeadMinutes <= 0 {
		return DefaultAnnounceLeadMinutes * time.Minute
	}
	return time.Duration(s.AnnounceLeadMinutes) * time.Minute
}
