/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"
)

// MaxSetupTags bounds the tags stored on a setup.
const MaxSetupTags = 10

// Setup is a saved combination of stream metadata and an announcement draft
// that the operator can re-apply with one click.
type Setup struct {
	ID         string   `gorm:"type:varchar(36);primaryKey" json:"id" yaml:"-"`
	ChannelID  string   `gorm:"type:varchar(36);index:idx_setups_channel;not null" json:"channel_id" yaml:"-"`
	Category   string   `gorm:"type:varchar(255);not null;default:''" json:"category" yaml:"category"`
	CategoryID string   `gorm:"type:varchar(64)" json:"category_id,omitempty" yaml:"category_id,omitempty"`
	Title      string   `gorm:"type:varchar(255);not null;default:''" json:"title" yaml:"title"`
	Tags       []string `gorm:"type:text;serializer:json" json:"tags" yaml:"tags,omitempty"`
	Tweet      string   `gorm:"type:text" json:"tweet" yaml:"tweet,omitempty"`

	Channel *Channel `gorm:"foreignKey:ChannelID" json:"-" yaml:"-"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// TableName returns the table name for GORM.
func (Setup) TableName() string {
	return "setups"
}

// CleanTags trims tags, drops blanks and duplicates, and caps the count.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == MaxSetupTags {
			break
		}
	}
	return out
}
