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
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/config"
)

var (
	cfgHostname  string
	cfgUsername  string
	cfgPassword  string
	cfgSecure    bool
	cfgEnv       bool
	cfgEncode    bool
	cfgOverwrite bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the config file, or print it as environment variables.",
	Run: func(cmd *cobra.Command, args []string) {
		a := config.Appliance{
			Hostname: cfgHostname,
			Username: cfgUsername,
			Password: cfgPassword,
			Verify:   cfgSecure,
		}
		if err := a.Validate(); err != nil {
			logger.Fatal("invalid config", zap.Error(err))
		}

		if cfgEnv {
			lines, err := config.EnvExports(a, cfgEncode)
			if err != nil {
				logger.Fatal("failed to encode config", zap.Error(err))
			}
			fmt.Println("Environment Settings Generated (copy paste below)")
			for _, l := range lines {
				fmt.Println(l)
			}
			return
		}

		path := cfgFile
		if path == "" {
			var err error
			if path, err = config.DefaultPath(); err != nil {
				logger.Fatal("failed to find home directory", zap.Error(err))
			}
		}
		err := config.Write(path, &config.Config{DNAC: a, Schedule: defaultSchedule()}, cfgOverwrite)
		if errors.Is(err, config.ErrConfigExists) {
			fmt.Printf("Warning: Config already exist (%s), use --overwrite to replace it\n", path)
			return
		}
		if err != nil {
			logger.Fatal("failed to write config", zap.Error(err))
		}
		fmt.Printf("Success: Config created (%s)\n", path)
	},
}

// defaultSchedule is written to new config files so the daemon section is
// discoverable.
func defaultSchedule() config.Schedule {
	return config.Schedule{
		Job:      "purge",
		Interval: "daily",
		Day:      "monday",
		Time:     "23:00",
		Keep:     "3",
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVar(&cfgHostname, "hostname", "", "Cisco DNA Center hostname")
	configCmd.Flags().StringVar(&cfgUsername, "username", "", "Cisco DNA Center username")
	configCmd.Flags().StringVar(&cfgPassword, "password", "", "Cisco DNA Center password")
	configCmd.Flags().BoolVar(&cfgSecure, "secure", false, "verify the HTTPS certificate of Cisco DNA Center")
	configCmd.Flags().BoolVar(&cfgEnv, "env", false, "print environment variables instead of writing a file")
	configCmd.Flags().BoolVar(&cfgEncode, "encode", false, "with --env, print a single base64 encoded DNAC_CONFIG")
	configCmd.Flags().BoolVar(&cfgOverwrite, "overwrite", false, "replace an existing config file")
	for _, f := range []string{"hostname", "username", "password"} {
		_ = configCmd.MarkFlagRequired(f)
	}
}
