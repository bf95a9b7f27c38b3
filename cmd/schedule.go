// This file is part of dnac-backup
//
// Copyright (C) 2021  dnac-backup authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/format"
	"github.com/ciscodnac/dnac-backup/pkg/remoteschedule"
	"github.com/ciscodnac/dnac-backup/pkg/retention"
	"github.com/ciscodnac/dnac-backup/pkg/schedule"
)

var (
	schedAction string
	schedName   string
	schedDays   []string
	schedHour   string

	schedInterval     string
	schedDay          string
	schedKeep         string
	schedIncompatible bool
)

var scheduleBackupCmd = &cobra.Command{
	Use:   "schedule-backup",
	Short: "Create or delete the backup schedule on Cisco DNA Center.",
	Run: func(cmd *cobra.Command, args []string) {
		_, c := mustBackupClient()
		m := remoteschedule.NewManager(c, logger)

		var (
			out *remoteschedule.Outcome
			err error
		)
		switch strings.ToLower(schedAction) {
		case "create":
			days, perr := schedule.ParseDays(schedDays)
			if perr != nil {
				logger.Fatal("invalid day", zap.Error(perr))
			}
			at, perr := schedule.ParseTimeOfDay(schedHour)
			if perr != nil {
				logger.Fatal("invalid hour", zap.Error(perr))
			}
			out, err = m.CreateOnDays(cmd.Context(), schedName, days, at)
		case "delete":
			out, err = m.Delete(cmd.Context(), schedName)
		default:
			logger.Fatal("unknown action, want create or delete", zap.String("action", schedAction))
		}
		if err != nil {
			logger.Fatal("failed to update schedule", zap.Error(err))
		}
		format.Table(format.ScheduleHeaders, format.ScheduleRow(out))
	},
}

var schedulePurgeCmd = &cobra.Command{
	Use:   "schedule-purge",
	Short: "Purge backups on a daily or weekly schedule, in the foreground.",
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := schedule.Parse(schedInterval, schedDay, schedHour)
		if err != nil {
			logger.Fatal("invalid schedule", zap.Error(err))
		}
		policy, err := retention.FromOptions(schedKeep, schedIncompatible)
		if err != nil {
			logger.Fatal("invalid retention policy", zap.Error(err))
		}
		cfg, c := mustBackupClient()

		r := newJobRunner(c, cfg.DNAC.Hostname, policy, newNotifier(cfg))
		fmt.Printf("\nYour backups will be deleted %s\n", spec)
		runScheduled(cmd.Context(), armScheduler(spec, r.purge), r.close)
	},
}

func init() {
	rootCmd.AddCommand(scheduleBackupCmd, schedulePurgeCmd)

	scheduleBackupCmd.Flags().StringVarP(&schedAction, "action", "a", "", "create or delete")
	scheduleBackupCmd.Flags().StringVarP(&schedName, "name", "n", "", "name of the scheduled backup")
	scheduleBackupCmd.Flags().StringSliceVarP(&schedDays, "day", "d", []string{schedule.EveryDay}, "weekday to back up on, repeatable, or everyday")
	scheduleBackupCmd.Flags().StringVarP(&schedHour, "hour", "t", "23:00", "time of the backup, HH:MM")
	_ = scheduleBackupCmd.MarkFlagRequired("action")
	_ = scheduleBackupCmd.MarkFlagRequired("name")

	schedulePurgeCmd.Flags().StringVarP(&schedInterval, "interval", "i", "", "daily or weekly")
	schedulePurgeCmd.Flags().StringVarP(&schedDay, "day", "d", "monday", "weekday of a weekly purge")
	schedulePurgeCmd.Flags().StringVarP(&schedHour, "hour", "t", "23:00", "time of the purge, HH:MM")
	schedulePurgeCmd.Flags().StringVarP(&schedKeep, "keep", "k", "3", "backups to keep: a count (3) or a number of days (30d)")
	schedulePurgeCmd.Flags().BoolVar(&schedIncompatible, "incompatible", false, "delete every incompatible backup")
	_ = schedulePurgeCmd.MarkFlagRequired("interval")
}
