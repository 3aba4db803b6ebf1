/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wavepulse/wavepulse/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Compile and print the recording schedule",
	Long: `Load the weekly timetable, compile it into time slots for today, and
print the result as JSON. The compiled plan is also written to the data
directory, exactly as the run command would do at cycle start.`,
	RunE: runSchedule,
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	stations, err := schedule.Load(cfg.SchedulePath())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataPath(), 0o755); err != nil {
		return err
	}
	compiler := schedule.NewCompiler(cfg.DataPath(), logger)
	slots, err := compiler.Compile(stations, time.Now().In(cfg.Location()))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(slots)
}
