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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/backupapi"
	"github.com/ciscodnac/dnac-backup/pkg/config"
	"github.com/ciscodnac/dnac-backup/pkg/version"
)

var (
	cfgFile string
	logFile string
	debug   bool
	logger  *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dnac-backup",
	Short: "Manage Cisco DNA Center backups.",
	Long: `dnac-backup lists, creates and deletes Cisco DNA Center backups, purges them
according to a retention policy and schedules recurring backups and purges.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			fmt.Println(err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error(err.Error())
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dnac-backup.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug (default is false)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file, rotated")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	logger = backupapi.NewLog(logFile, debug)

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}

		// Search config in home directory with name ".dnac-backup" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(config.FileName)
	}

	config.SetDefaults(viper.GetViper())

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		logger.Debug("Using config file: " + viper.ConfigFileUsed())
	}
}

// loadConfig resolves the appliance settings from the environment and files.
func loadConfig() (*config.Config, error) {
	return config.NewLoader(viper.GetViper()).Load()
}

func newBackupClient(cfg *config.Config) (*backupapi.Client, error) {
	opts := []backupapi.ClientOption{
		backupapi.WithServerURL(cfg.DNAC.Hostname),
		backupapi.WithCredentials(cfg.DNAC.Username, cfg.DNAC.Password),
		backupapi.WithVerifyTLS(cfg.DNAC.Verify),
		backupapi.WithUserAgent(version.UserAgent()),
		backupapi.WithLogger(logger),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, backupapi.WithRateLimit(cfg.RateLimit, 1))
	}
	return backupapi.NewClient(opts...)
}

// mustBackupClient loads the config and builds a client, or exits.
func mustBackupClient() (*config.Config, *backupapi.Client) {
	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	c, err := newBackupClient(cfg)
	if err != nil {
		logger.Fatal("failed to create backup client", zap.Error(err))
	}
	return cfg, c
}
