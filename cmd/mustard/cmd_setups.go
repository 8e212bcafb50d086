/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/friendsincode/mustard/internal/db"
	"github.com/friendsincode/mustard/internal/models"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import stream setups from YAML",
	Long:  "Import saved stream setups (category, title, tags, announcement draft) from a YAML file",
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stream setups as YAML",
	RunE:  runExport,
}

var (
	setupsChannel string
	setupsFile    string
	setupsReplace bool
	setupsDryRun  bool
)

// setupFile is the YAML document layout.
type setupFile struct {
	Setups []models.Setup `yaml:"setups"`
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)

	importCmd.Flags().StringVar(&setupsChannel, "channel", "", "Channel ID or login (required)")
	importCmd.Flags().StringVar(&setupsFile, "file", "", "YAML file, - for stdin (required)")
	importCmd.Flags().BoolVar(&setupsReplace, "replace", false, "Delete existing setups first")
	importCmd.Flags().BoolVar(&setupsDryRun, "dry-run", false, "Validate the file without importing")
	importCmd.MarkFlagRequired("channel")
	importCmd.MarkFlagRequired("file")

	exportCmd.Flags().StringVar(&setupsChannel, "channel", "", "Channel ID or login (required)")
	exportCmd.Flags().StringVar(&setupsFile, "file", "-", "Output file, - for stdout")
	exportCmd.MarkFlagRequired("channel")
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if setupsFile != "-" {
		f, err := os.Open(setupsFile)
		if err != nil {
			return fmt.Errorf("open setups file: %w", err)
		}
		defer f.Close()
		in = f
	}

	setups, err := readSetups(in)
	if err != nil {
		return err
	}

	logger.Info().
		Str("file", setupsFile).
		Int("setups", len(setups)).
		Bool("dry_run", setupsDryRun).
		Msg("starting setup import")

	if setupsDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%d setups valid\n", len(setups))
		return nil
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close(database)

	channel, err := findChannel(database, setupsChannel)
	if err != nil {
		return err
	}

	err = database.Transaction(func(tx *gorm.DB) error {
		if setupsReplace {
			if err := tx.Where("channel_id = ?", channel.ID).Delete(&models.Setup{}).Error; err != nil {
				return fmt.Errorf("delete existing setups: %w", err)
			}
		}
		for i := range setups {
			setups[i].ID = uuid.NewString()
			setups[i].ChannelID = channel.ID
		}
		if len(setups) == 0 {
			return nil
		}
		return tx.Create(&setups).Error
	})
	if err != nil {
		return fmt.Errorf("import setups: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d setups into %s\n", len(setups), channel.Name())
	return nil
}

// readSetups decodes and validates a setups document.
func readSetups(r io.Reader) ([]models.Setup, error) {
	var doc setupFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse setups: %w", err)
	}

	for i := range doc.Setups {
		s := &doc.Setups[i]
		s.Category = strings.TrimSpace(s.Category)
		s.Title = strings.TrimSpace(s.Title)
		s.Tags = models.CleanTags(s.Tags)
		if s.Category == "" && s.Title == "" {
			return nil, fmt.Errorf("setup %d: category or title required", i+1)
		}
	}
	return doc.Setups, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close(database)

	channel, err := findChannel(database, setupsChannel)
	if err != nil {
		return err
	}

	var setups []models.Setup
	if err := database.Where("channel_id = ?", channel.ID).Order("created_at ASC").Find(&setups).Error; err != nil {
		return fmt.Errorf("load setups: %w", err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if setupsFile != "-" {
		f, err := os.Create(setupsFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return writeSetups(out, setups)
}

func writeSetups(w io.Writer, setups []models.Setup) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(setupFile{Setups: setups}); err != nil {
		return fmt.Errorf("encode setups: %w", err)
	}
	return enc.Close()
}
