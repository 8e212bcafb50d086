/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/mustard/internal/auth"
	"github.com/friendsincode/mustard/internal/db"
	"github.com/friendsincode/mustard/internal/models"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator token for a channel",
	Long:  "Issue a signed bearer token scoped to one channel. The token is printed to stdout.",
	RunE:  runToken,
}

var (
	tokenChannel  string
	tokenOperator string
	tokenTTL      time.Duration
)

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenChannel, "channel", "", "Channel ID or login (required)")
	tokenCmd.Flags().StringVar(&tokenOperator, "operator", "", "Name recorded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultTokenTTL, "Token lifetime")
	tokenCmd.MarkFlagRequired("channel")
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if tokenTTL <= 0 {
		return errors.New("--ttl must be positive")
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close(database)

	channel, err := findChannel(database, tokenChannel)
	if err != nil {
		return err
	}

	token, err := auth.Issue([]byte(cfg.JWTSigningKey), auth.Claims{ChannelID: channel.ID, Operator: tokenOperator}, tokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	logger.Info().Str("channel_id", channel.ID).Dur("ttl", tokenTTL).Msg("operator token issued")
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

// findChannel resolves a channel by ID, falling back to its login.
func findChannel(database *gorm.DB, ref string) (*models.Channel, error) {
	var channel models.Channel
	err := database.Where("id = ? OR login = ?", ref, ref).First(&channel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("channel %q not found", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("load channel: %w", err)
	}
	return &channel, nil
}
