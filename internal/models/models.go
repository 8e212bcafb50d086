package models

import (
	"strings"
	"time"
)

// Channel is a streaming channel operated through the panel.
type Channel struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	TwitchID    string    `gorm:"type:varchar(64);index" json:"twitch_id"`
	Login       string    `gorm:"type:varchar(64);index" json:"login"`
	DisplayName string    `gorm:"type:varchar(128)" json:"display_name"`
	Timezone    string    `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"` // IANA name
	Checklist   string    `gorm:"type:text" json:"checklist"`                                // newline separated
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Channel) TableName() string {
	return "channels"
}

// Name returns the best human readable name for the channel.
func (c Channel) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	if c.Login != "" {
		return c.Login
	}
	return c.ID
}

// Location resolves the channel timezone, falling back to UTC.
func (c Channel) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ChecklistItems splits the checklist into its non-empty lines.
func (c Channel) ChecklistItems() []string {
	lines := strings.Split(c.Checklist, "\n")
	items := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}
