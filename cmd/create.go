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
)

var (
	createName string
	createWait bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Start a backup now.",
	Run: func(cmd *cobra.Command, args []string) {
		_, c := mustBackupClient()
		id, err := c.CreateBackup(cmd.Context(), createName)
		if err != nil {
			logger.Fatal("failed to create backup", zap.Error(err))
		}
		fmt.Printf("Success: Backup '%s' started (%s)\n", createName, id)
		if !createWait {
			return
		}

		job, err := c.WaitForBackup(cmd.Context(), id)
		if err != nil {
			logger.Fatal("failed waiting for backup", zap.String("backup_id", id), zap.Error(err))
		}
		fmt.Printf("Backup '%s' finished: %s\n", createName, job.Status)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete BACKUP_ID...",
	Short: "Delete backups by id.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, c := mustBackupClient()
		failed := 0
		for _, id := range args {
			if _, err := c.DeleteBackup(cmd.Context(), id); err != nil {
				logger.Error("failed to delete backup", zap.String("backup_id", id), zap.Error(err))
				failed++
				continue
			}
			fmt.Printf("Success: Backup %s deleted\n", id)
		}
		if failed > 0 {
			logger.Fatal(fmt.Sprintf("%d of %d deletions failed", failed, len(args)))
		}
	},
}

func init() {
	rootCmd.AddCommand(createCmd, deleteCmd)
	createCmd.Flags().StringVar(&createName, "name", "", "description of the backup")
	createCmd.Flags().BoolVar(&createWait, "wait", false, "wait until the backup has finished")
	_ = createCmd.MarkFlagRequired("name")
}
