// Package purge deletes the appliance backups a retention policy no longer
// keeps.
package purge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/backupapi"
	"github.com/ciscodnac/dnac-backup/pkg/retention"
)

// Client is the part of the appliance API a purge needs.
type Client interface {
	ListBackups(ctx context.Context) ([]backupapi.Backup, error)
	DeleteBackup(ctx context.Context, backupID string) (*backupapi.DeleteResult, error)
}

// Confirmer asks the operator whether candidates may be deleted. Returning
// false, or io.EOF when no answer can be read, aborts the purge.
type Confirmer interface {
	Confirm(candidates []backupapi.Backup) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(candidates []backupapi.Backup) (bool, error)

func (f ConfirmFunc) Confirm(candidates []backupapi.Backup) (bool, error) { return f(candidates) }

// Failure is one backup that could not be deleted.
type Failure struct {
	ID  string
	Err error
}

// Result reports what a purge did.
type Result struct {
	Policy     retention.Policy
	Candidates []backupapi.Backup
	Deleted    []string
	Failed     []Failure
	// SkippedCount is the number of backups the policy kept.
	SkippedCount int
	// Aborted is set when the operator declined the deletion.
	Aborted bool
}

// Err returns a *PartialDeleteFailure when any delete failed, nil otherwise.
func (r *Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &PartialDeleteFailure{Failed: r.Failed, Deleted: len(r.Deleted)}
}

// PartialDeleteFailure is returned when some candidates could not be deleted.
// Every failure is kept; the others were still attempted.
type PartialDeleteFailure struct {
	Failed  []Failure
	Deleted int
}

func (e *PartialDeleteFailure) Error() string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = f.ID
	}
	return fmt.Sprintf("purge: %d of %d deletions failed (%s): %v",
		len(e.Failed), len(e.Failed)+e.Deleted, strings.Join(ids, ", "), e.Unwrap())
}

// Unwrap combines the per backup errors so errors.Is sees through them.
func (e *PartialDeleteFailure) Unwrap() error {
	var err error
	for _, f := range e.Failed {
		err = multierr.Append(err, fmt.Errorf("%s: %w", f.ID, f.Err))
	}
	return err
}

// Is matches any of the underlying delete errors.
func (e *PartialDeleteFailure) Is(target error) bool {
	for _, err := range multierr.Errors(e.Unwrap()) {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Purger runs purges against one appliance.
type Purger struct {
	client    Client
	confirmer Confirmer
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(p *Purger)

// WithConfirmer sets who is asked before an interactive purge deletes.
func WithConfirmer(c Confirmer) Option {
	return func(p *Purger) {
		p.confirmer = c
	}
}

// WithClock replaces time.Now for KeepSince cutoffs.
func WithClock(now func() time.Time) Option {
	return func(p *Purger) {
		p.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Purger) {
		p.logger = logger
	}
}

func New(client Client, opts ...Option) *Purger {
	p := &Purger{client: client, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Purge deletes the backups policy does not keep. When interactive is set the
// candidates are confirmed first; without a Confirmer an interactive purge
// always aborts.
//
// Deletes are sequential and independent: a failed delete is recorded and the
// rest are still attempted. The returned error is Result.Err() in that case,
// and the Result is always returned alongside it.
func (p *Purger) Purge(ctx context.Context, policy retention.Policy, interactive bool) (*Result, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	backups, err := p.client.ListBackups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	backupapi.SortNewestFirst(backups)

	kept, candidates, err := retention.Partition(backups, policy, p.now())
	if err != nil {
		return nil, err
	}
	res := &Result{Policy: policy, Candidates: candidates, SkippedCount: len(kept)}
	p.logger.Info("purge candidates selected",
		zap.Stringer("policy", policy),
		zap.Int("total", len(backups)),
		zap.Int("candidates", len(candidates)))
	if len(candidates) == 0 {
		return res, nil
	}

	if interactive {
		ok, err := p.confirm(candidates)
		if err != nil {
			return nil, fmt.Errorf("confirm purge: %w", err)
		}
		if !ok {
			p.logger.Info("purge aborted by operator")
			res.Aborted = true
			return res, nil
		}
	}

	for _, b := range candidates {
		if err := p.deleteOne(ctx, b.BackupID); err != nil {
			p.logger.Error("delete backup failed", zap.String("backup_id", b.BackupID), zap.Error(err))
			res.Failed = append(res.Failed, Failure{ID: b.BackupID, Err: err})
			continue
		}
		p.logger.Info("backup deleted", zap.String("backup_id", b.BackupID))
		res.Deleted = append(res.Deleted, b.BackupID)
	}
	return res, res.Err()
}

func (p *Purger) confirm(candidates []backupapi.Backup) (bool, error) {
	if p.confirmer == nil {
		return false, nil
	}
	ok, err := p.confirmer.Confirm(candidates)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	return ok, err
}

func (p *Purger) deleteOne(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.client.DeleteBackup(ctx, id)
	return err
}
