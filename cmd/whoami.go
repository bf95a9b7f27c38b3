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
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/config"
	"github.com/ciscodnac/dnac-backup/pkg/format"
)

var whoamiCheck bool

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show which Cisco DNA Center the commands talk to.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}

		rows := whoamiRows(cfg)
		if whoamiCheck {
			status := "ok"
			c, err := newBackupClient(cfg)
			if err == nil {
				_, err = c.Authenticate(cmd.Context())
			}
			if err != nil {
				status = err.Error()
			}
			rows = append(rows, []string{"LOGIN", status})
		}
		format.Table(format.SettingHeaders, rows)
	},
}

// whoamiRows describes cfg without its password.
func whoamiRows(cfg *config.Config) [][]string {
	pairs := [][2]string{
		{"HOSTNAME", cfg.DNAC.Hostname},
		{"USERNAME", cfg.DNAC.Username},
		{"SECURE", strconv.FormatBool(cfg.DNAC.Verify)},
		{"METHOD", string(cfg.Source)},
	}
	if cfg.File != "" {
		pairs = append(pairs, [2]string{"FILE", cfg.File})
	}
	return format.SettingRows(pairs...)
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
	whoamiCmd.Flags().BoolVar(&whoamiCheck, "check", false, "also log in to verify the credentials")
}
