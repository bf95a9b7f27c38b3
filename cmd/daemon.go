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
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/backupapi"
	"github.com/ciscodnac/dnac-backup/pkg/broker"
	"github.com/ciscodnac/dnac-backup/pkg/broker/mqtt"
	"github.com/ciscodnac/dnac-backup/pkg/config"
	"github.com/ciscodnac/dnac-backup/pkg/purge"
	"github.com/ciscodnac/dnac-backup/pkg/retention"
	"github.com/ciscodnac/dnac-backup/pkg/schedule"
	"github.com/ciscodnac/dnac-backup/pkg/scheduler"
	"github.com/ciscodnac/dnac-backup/pkg/server"
)

const (
	jobBackup = "backup"
	jobPurge  = "purge"

	backupNameLayout = "20060102150405"
)

const brokerConnectAttempts = 5

var (
	daemonJob        string
	daemonStatusAddr string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the job configured under schedule: in the foreground.",
	Long: `Run the job configured under schedule: in the config file, in the foreground.

The job is "purge" (apply the retention policy) or "backup" (start a backup and
wait for it). When notify.broker_url is set, the outcome of every run is
published as JSON to notify.topic. With --status-addr (or status_addr), the
scheduler state is served read only on /status.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, c := mustBackupClient()
		if daemonJob != "" {
			cfg.Schedule.Job = daemonJob
		}

		spec, err := schedule.Parse(cfg.Schedule.Interval, cfg.Schedule.Day, cfg.Schedule.Time)
		if err != nil {
			logger.Fatal("invalid schedule in config", zap.Error(err))
		}
		policy, err := retention.FromOptions(cfg.Schedule.Keep, cfg.Schedule.Incompatible)
		if err != nil {
			logger.Fatal("invalid retention policy in config", zap.Error(err))
		}

		r := newJobRunner(c, cfg.DNAC.Hostname, policy, newNotifier(cfg))
		job, err := r.byName(cfg.Schedule.Job)
		if err != nil {
			logger.Fatal("invalid job in config", zap.Error(err))
		}
		s := armScheduler(spec, job)

		onExit := r.close
		if daemonStatusAddr == "" {
			daemonStatusAddr = cfg.StatusAddr
		}
		if daemonStatusAddr != "" {
			done := serveStatus(cmd.Context(), daemonStatusAddr, cfg.Schedule.Job, s, c)
			onExit = func() {
				r.close()
				<-done
			}
		}

		logger.Info("daemon started",
			zap.String("job", cfg.Schedule.Job),
			zap.Stringer("schedule", spec),
			zap.Stringer("policy", policy))
		runScheduled(cmd.Context(), s, onExit)
	},
}

func armScheduler(spec schedule.Spec, job scheduler.Job) *scheduler.Scheduler {
	s, err := scheduler.New(spec, job, scheduler.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to arm scheduler", zap.Error(err))
	}
	return s
}

// runScheduled polls s until the process dies. When ctx is cancelled by a
// signal, onExit runs and the process exits.
func runScheduled(ctx context.Context, s *scheduler.Scheduler, onExit func()) {
	go func() {
		<-ctx.Done()
		logger.Info("signal received, exiting")
		onExit()
		os.Exit(0)
	}()
	s.Run()
}

// serveStatus runs the status server until ctx is done. The returned channel
// is closed once it has shut down.
func serveStatus(ctx context.Context, addr, job string, s *scheduler.Scheduler, c server.BackupLister) <-chan struct{} {
	srv, err := server.New(
		server.WithAddr(addr),
		server.WithStatus(job, s),
		server.WithBackupLister(c),
		server.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("failed to create status server", zap.Error(err))
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Run(ctx); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server stopped", zap.Error(err))
		}
	}()
	return done
}

// newNotifier connects to the configured broker. Notifications are off when
// no broker is configured or it cannot be reached.
func newNotifier(cfg *config.Config) *broker.Notifier {
	if cfg.Notify.BrokerURL == "" {
		return nil
	}
	host, _ := os.Hostname()
	b, err := mqtt.NewBroker(
		mqtt.WithURL(cfg.Notify.BrokerURL),
		mqtt.WithClientID("dnac-backup-"+host),
		mqtt.WithLogger(logger),
	)
	if err != nil {
		logger.Error("invalid broker, notifications disabled", zap.Error(err))
		return nil
	}

	bo := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Jitter: true}
	for attempt := 1; ; attempt++ {
		err = b.Connect()
		if err == nil {
			break
		}
		if attempt == brokerConnectAttempts {
			logger.Error("failed to connect to broker, notifications disabled", zap.Error(err))
			return nil
		}
		d := bo.Duration()
		logger.Warn("failed to connect to broker", zap.Error(err), zap.Duration("retry_in", d))
		time.Sleep(d)
	}
	return broker.NewNotifier(b, cfg.Notify.Topic, logger)
}

type backupStarter interface {
	CreateBackup(ctx context.Context, description string) (string, error)
	WaitForBackup(ctx context.Context, backupID string) (*backupapi.Job, error)
}

// jobRunner holds everything a scheduled run needs. It is built once when the
// scheduler is armed and never changed.
type jobRunner struct {
	backups  backupStarter
	purger   *purge.Purger
	policy   retention.Policy
	notifier *broker.Notifier
	host     string
	now      func() time.Time
}

type applianceClient interface {
	backupStarter
	purge.Client
}

func newJobRunner(c applianceClient, host string, policy retention.Policy, n *broker.Notifier) *jobRunner {
	return &jobRunner{
		backups:  c,
		purger:   purge.New(c, purge.WithLogger(logger)),
		policy:   policy,
		notifier: n,
		host:     host,
		now:      time.Now,
	}
}

func (r *jobRunner) close() {
	if err := r.notifier.Close(); err != nil {
		logger.Debug("failed to disconnect from broker", zap.Error(err))
	}
}

func (r *jobRunner) byName(name string) (scheduler.Job, error) {
	switch strings.ToLower(name) {
	case jobPurge:
		return r.purge, nil
	case jobBackup:
		return r.backup, nil
	}
	return nil, fmt.Errorf("unknown job %q, want %s or %s", name, jobBackup, jobPurge)
}

// purge applies the retention policy without asking.
func (r *jobRunner) purge() error {
	res, err := r.purger.Purge(context.Background(), r.policy, false)

	msg := broker.NewMessage(broker.PurgeCompleted, r.host, r.now())
	msg.Policy = r.policy.String()
	if res != nil {
		msg.Deleted = res.Deleted
		msg.Kept = res.SkippedCount
		for _, f := range res.Failed {
			msg.Failed = append(msg.Failed, f.ID)
		}
	}
	if err != nil {
		msg.EventType = broker.PurgeFailed
		msg.Error = err.Error()
	}
	r.notifier.Notify(msg)

	if err != nil {
		return fmt.Errorf("scheduled purge: %w", err)
	}
	return nil
}

// backup starts a backup named after the current time and waits for it.
func (r *jobRunner) backup() error {
	ctx := context.Background()
	now := r.now()
	desc := "dnac-backup-" + now.Format(backupNameLayout)

	msg := broker.NewMessage(broker.BackupCompleted, r.host, now)
	msg.Description = desc

	id, err := r.backups.CreateBackup(ctx, desc)
	if err == nil {
		msg.BackupID = id
		var job *backupapi.Job
		if job, err = r.backups.WaitForBackup(ctx, id); err == nil {
			msg.Status = job.Status
			if job.Status != backupapi.BackupStatusSuccess {
				err = fmt.Errorf("backup %s finished with status %s", id, job.Status)
			}
		}
	}
	if err != nil {
		msg.EventType = broker.BackupFailed
		msg.Error = err.Error()
	}
	r.notifier.Notify(msg)
	return err
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().StringVar(&daemonJob, "job", "", "override schedule.job: backup or purge")
	daemonCmd.Flags().StringVar(&daemonStatusAddr, "status-addr", "", "serve the scheduler status on this address, unix:// for a socket")
}
