/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/mustard/internal/cache"
	"github.com/friendsincode/mustard/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the Redis cache",
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Drop cached Twitch categories and channel metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		return flushCache(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
	},
}

func init() {
	cacheCmd.AddCommand(cacheFlushCmd)
	rootCmd.AddCommand(cacheCmd)
}

func flushCache(ctx context.Context, out io.Writer, cfg *config.Config, logger zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = cfg.RedisAddr
	cacheCfg.RedisPassword = cfg.RedisPassword
	cacheCfg.RedisDB = cfg.RedisDB

	c, err := cache.New(cacheCfg, logger)
	if err != nil {
		return fmt.Errorf("connect cache: %w", err)
	}
	defer c.Close()

	if !c.IsAvailable() {
		return fmt.Errorf("redis not reachable at %s", cfg.RedisAddr)
	}
	if err := c.FlushAll(ctx); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	fmt.Fprintln(out, "cache flushed")
	return nil
}
