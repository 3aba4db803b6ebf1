/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wavepulse/wavepulse/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive the durable recording store now",
	Long: `Upload every file in the recordings directory to the configured backup
target, deleting each local copy once its upload is confirmed. This is the
same cycle the run command performs in the nightly maintenance window.`,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if !cfg.BackupEnabled {
		return fmt.Errorf("backup is disabled; set WAVEPULSE_BACKUP_AUDIO=true and configure a target")
	}

	target, err := newBackupTarget(cmd.Context())
	if err != nil {
		return fmt.Errorf("initialize backup target: %w", err)
	}

	svc := backup.NewService(target, cfg.Retries, cfg.RetryWait, logger)
	return svc.Run(cmd.Context(), cfg.RecordingsPath())
}
