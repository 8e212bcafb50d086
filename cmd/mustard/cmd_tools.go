/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/mustard/internal/schedule"
	"github.com/friendsincode/mustard/internal/thread"
	"github.com/friendsincode/mustard/internal/timenorm"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <times...>",
	Short: "Normalize free-form times to sorted HH:MM",
	Example: `  mustard normalize "9pm, 9:30am"
  09:30 21:00`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), timenorm.NormalizeDay(strings.Join(args, " ")))
	},
}

var nextCmd = &cobra.Command{
	Use:   "next <day=times>...",
	Short: "Show the next scheduled broadcast",
	Long:  "Resolve the next broadcast from day=times pairs, for example mon=\"9pm\" thu=\"19:00 21:00\".",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNext,
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split stdin into a thread of posts",
	Args:  cobra.NoArgs,
	RunE:  runSplit,
}

var (
	nextTZ     string
	nextOffset time.Duration
	nextAt     string
	nextCount  int

	splitMaxWeight int
	splitRunes     int
)

func init() {
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(splitCmd)

	nextCmd.Flags().StringVar(&nextTZ, "tz", "UTC", "IANA timezone of the schedule")
	nextCmd.Flags().DurationVar(&nextOffset, "offset", 0, "Fire this long before the broadcast")
	nextCmd.Flags().StringVar(&nextAt, "at", "", "Reference time (RFC 3339), default now")
	nextCmd.Flags().IntVarP(&nextCount, "count", "n", 1, "Number of occurrences to list")

	splitCmd.Flags().IntVar(&splitMaxWeight, "max-weight", thread.DefaultMaxWeight, "Weighted length limit per post")
	splitCmd.Flags().IntVar(&splitRunes, "runes", 0, "Use a plain rune limit instead of weighted length")
}

var dayPrefixes = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// parseWeekArgs reads day=times pairs. Repeated days accumulate.
func parseWeekArgs(args []string) (schedule.Week, error) {
	var raw [7][]string
	for _, arg := range args {
		name, times, ok := strings.Cut(arg, "=")
		if !ok {
			return schedule.Week{}, fmt.Errorf("expected day=times, got %q", arg)
		}
		day := dayIndex(name)
		if day < 0 {
			return schedule.Week{}, fmt.Errorf("unknown day %q", name)
		}
		raw[day] = append(raw[day], times)
	}

	var w schedule.Week
	for i := range raw {
		w[i] = strings.Join(raw[i], " ")
	}
	return w.Normalized(), nil
}

func dayIndex(name string) int {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < 3 {
		return -1
	}
	for i, prefix := range dayPrefixes {
		if strings.HasPrefix(name, prefix) {
			return i
		}
	}
	return -1
}

func runNext(cmd *cobra.Command, args []string) error {
	loc, err := time.LoadLocation(nextTZ)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	week, err := parseWeekArgs(args)
	if err != nil {
		return err
	}

	now := time.Now()
	if nextAt != "" {
		if now, err = time.Parse(time.RFC3339, nextAt); err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
	}
	now = now.In(loc)

	out := cmd.OutOrStdout()
	if nextCount <= 1 {
		occ, ok := schedule.NextOccurrence(week, now, nextOffset)
		if !ok {
			fmt.Fprintln(out, "no broadcasts scheduled")
			return nil
		}
		printOccurrence(out, occ)
		return nil
	}

	upcoming := schedule.Upcoming(week, now.Add(-nextOffset), nextCount)
	if len(upcoming) == 0 {
		fmt.Fprintln(out, "no broadcasts scheduled")
		return nil
	}
	for _, occ := range upcoming {
		printOccurrence(out, occ)
	}
	return nil
}

func printOccurrence(w io.Writer, occ schedule.Occurrence) {
	left := time.Duration(occ.SecondsUntil) * time.Second
	fmt.Fprintf(w, "%s %s\tin %s\n", schedule.Label(occ), occ.Time, left)
}

func runSplit(cmd *cobra.Command, args []string) error {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimRight(string(data), "\n")

	predicate := thread.TweetWeight(splitMaxWeight)
	if splitRunes > 0 {
		predicate = thread.Fixed(splitRunes)
	}

	segments, err := thread.Split(text, predicate)
	if err != nil {
		return err
	}
	parts := thread.Sendable(segments)

	out := cmd.OutOrStdout()
	for i, part := range parts {
		weight, _ := thread.Weigh(part, splitMaxWeight)
		fmt.Fprintf(out, "--- %d/%d (weight %d)\n%s\n", i+1, len(parts), weight, part)
	}
	return nil
}
