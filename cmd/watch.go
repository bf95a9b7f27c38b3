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
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/broker"
	"github.com/ciscodnac/dnac-backup/pkg/broker/mqtt"
	"github.com/ciscodnac/dnac-backup/pkg/format"
)

var watchHeaders = []string{"CREATED_AT", "EVENT_TYPE", "HOST", "DETAIL"}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print job events published by running daemons.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}
		if cfg.Notify.BrokerURL == "" {
			logger.Fatal("notify.broker_url is not set")
		}

		host, _ := os.Hostname()
		b, err := mqtt.NewBroker(
			mqtt.WithURL(cfg.Notify.BrokerURL),
			mqtt.WithClientID("dnac-backup-watch-"+host),
			mqtt.WithLogger(logger),
		)
		if err != nil {
			logger.Fatal("failed to create broker", zap.Error(err))
		}
		if err := b.ConnectAndSubscribe(printEvent, []string{cfg.Notify.Topic}); err != nil {
			logger.Fatal("failed to subscribe", zap.Error(err))
		}
		defer b.Disconnect()

		logger.Info("watching", zap.String("broker", cfg.Notify.BrokerURL), zap.String("topic", cfg.Notify.Topic))
		<-cmd.Context().Done()
	},
}

func printEvent(e broker.Event) error {
	msg, err := broker.DecodeMessage(e.Payload)
	if err != nil {
		return err
	}
	format.Table(watchHeaders, [][]string{eventRow(msg)})
	return nil
}

func eventRow(msg broker.Message) []string {
	var detail string
	switch msg.EventType {
	case broker.BackupCompleted, broker.BackupFailed:
		detail = msg.Description
		if msg.BackupID != "" {
			detail += " (" + msg.BackupID + ")"
		}
	case broker.PurgeCompleted, broker.PurgeFailed:
		detail = msg.Policy
		if len(msg.Deleted) > 0 {
			detail += ", deleted " + strings.Join(msg.Deleted, " ")
		}
		if len(msg.Failed) > 0 {
			detail += ", failed " + strings.Join(msg.Failed, " ")
		}
	}
	if msg.Error != "" {
		detail += ": " + msg.Error
	}
	return []string{msg.CreatedAt, msg.EventType, msg.Host, detail}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
