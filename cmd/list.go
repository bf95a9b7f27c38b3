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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/backupapi"
	"github.com/ciscodnac/dnac-backup/pkg/format"
)

var listReverse bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, oldest first.",
	Run: func(cmd *cobra.Command, args []string) {
		_, c := mustBackupClient()
		backups, err := c.ListBackups(cmd.Context())
		if err != nil {
			logger.Fatal("failed to list backups", zap.Error(err))
		}
		if listReverse {
			backupapi.SortNewestFirst(backups)
		}
		if len(backups) == 0 {
			fmt.Println("No backups")
			return
		}
		format.Table(format.BackupHeaders, format.New().BackupRows(backups))
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the backup and restore history.",
	Run: func(cmd *cobra.Command, args []string) {
		_, c := mustBackupClient()
		jobs, err := c.BackupHistory(cmd.Context())
		if err != nil {
			logger.Fatal("failed to get backup history", zap.Error(err))
		}
		format.Table(format.JobHeaders, format.New().HistoryRows(jobs))
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show backups and restores in progress.",
	Run: func(cmd *cobra.Command, args []string) {
		_, c := mustBackupClient()
		jobs, err := c.BackupProgress(cmd.Context())
		if err != nil {
			logger.Fatal("failed to get backup progress", zap.Error(err))
		}
		format.Table(format.JobHeaders, format.New().ProgressRows(jobs))
	},
}

func init() {
	rootCmd.AddCommand(listCmd, historyCmd, progressCmd)
	listCmd.Flags().BoolVar(&listReverse, "reverse", false, "list newest first")
}
