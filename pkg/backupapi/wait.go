package backupapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v3"
	"go.uber.org/zap"
)

var errBackupRunning = errors.New("backup still running")

// WaitForBackup polls the progress list until backupID is no longer pending or
// in progress, then returns its final history entry. Errors from the appliance
// stop the wait immediately.
func (c *Client) WaitForBackup(ctx context.Context, backupID string) (*Job, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.waitInterval
	b.MaxInterval = 20 * c.waitInterval
	b.MaxElapsedTime = c.waitTimeout

	poll := func() error {
		jobs, err := c.BackupProgress(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		for _, j := range jobs {
			if j.BackupID == backupID && j.InProgress() {
				c.logger.Debug("backup in progress",
					zap.String("backup_id", backupID),
					zap.Float64("progress", j.ProgressPercentage))
				return errBackupRunning
			}
		}
		return nil
	}
	if err := backoff.Retry(poll, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errBackupRunning) {
			return nil, fmt.Errorf("backup %s: gave up after %s: %w", backupID, c.waitTimeout, err)
		}
		return nil, err
	}

	history, err := c.BackupHistory(ctx)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if history[i].BackupID == backupID {
			return &history[i], nil
		}
	}
	return nil, fmt.Errorf("backup %s: %w in history", backupID, ErrNotFound)
}
