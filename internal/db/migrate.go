/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/mustard/internal/models"
	"github.com/friendsincode/mustard/internal/timenorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Channel{},
		&models.Setup{},
		&models.Schedule{},
		&models.Announcement{},
	); err != nil {
		return err
	}

	if err := normalizeStoredSchedules(database); err != nil {
		return err
	}
	if err := defaultChannelTimezones(database); err != nil {
		return err
	}

	return nil
}

// normalizeStoredSchedules rewrites schedule rows written before times were
// normalized on save, and pads short rows to seven days.
func normalizeStoredSchedules(database *gorm.DB) error {
	var rows []models.Schedule
	if err := database.Find(&rows).Error; err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}

	for _, row := range rows {
		week := row.Week()
		changed := len(row.Days) != len(week)
		for i, day := range week {
			normalized := timenorm.NormalizeDay(day)
			if normalized != day {
				week[i] = normalized
				changed = true
			}
		}
		if !changed {
			continue
		}
		row.Days = week[:]
		if err := database.Save(&row).Error; err != nil {
			return fmt.Errorf("normalize schedule %s: %w", row.ChannelID, err)
		}
	}
	return nil
}

func defaultChannelTimezones(database *gorm.DB) error {
	return database.Exec(
		"UPDATE channels SET timezone = 'UTC' WHERE timezone IS NULL OR timezone = ''",
	).Error
}
