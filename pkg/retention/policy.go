// Package retention decides which appliance backups a purge removes.
package retention

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ciscodnac/dnac-backup/pkg/backupapi"
)

// ErrInvalidPolicy is returned for retention parameters that cannot be applied.
var ErrInvalidPolicy = errors.New("invalid retention policy")

// Mode selects how a Policy decides what to keep.
type Mode int

const (
	// ModeKeepCount keeps the N most recent backups.
	ModeKeepCount Mode = iota + 1
	// ModeKeepSince keeps backups that ended within the last N days.
	ModeKeepSince
	// ModeKeepCompatibleOnly keeps backups the appliance can still restore.
	ModeKeepCompatibleOnly
)

func (m Mode) String() string {
	switch m {
	case ModeKeepCount:
		return "keep-count"
	case ModeKeepSince:
		return "keep-since"
	case ModeKeepCompatibleOnly:
		return "keep-compatible-only"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Policy is a retention rule. Exactly one mode is active; build it with
// KeepCount, KeepSince or KeepCompatibleOnly.
type Policy struct {
	mode  Mode
	count int
	days  int
}

// KeepCount keeps the n most recent backups and deletes the rest.
func KeepCount(n int) Policy {
	return Policy{mode: ModeKeepCount, count: n}
}

// KeepSince keeps backups whose end timestamp is within the last days days.
func KeepSince(days int) Policy {
	return Policy{mode: ModeKeepSince, days: days}
}

// KeepCompatibleOnly keeps compatible backups and deletes all others.
func KeepCompatibleOnly() Policy {
	return Policy{mode: ModeKeepCompatibleOnly}
}

func (p Policy) Mode() Mode { return p.mode }
func (p Policy) Count() int { return p.count }
func (p Policy) Days() int  { return p.days }

// Validate reports ErrInvalidPolicy for negative counts, non-positive day
// windows and the zero Policy.
func (p Policy) Validate() error {
	switch p.mode {
	case ModeKeepCount:
		if p.count < 0 {
			return fmt.Errorf("%w: keep count %d is negative", ErrInvalidPolicy, p.count)
		}
	case ModeKeepSince:
		if p.days <= 0 {
			return fmt.Errorf("%w: keep days %d must be positive", ErrInvalidPolicy, p.days)
		}
	case ModeKeepCompatibleOnly:
	default:
		return fmt.Errorf("%w: no retention mode selected", ErrInvalidPolicy)
	}
	return nil
}

func (p Policy) String() string {
	switch p.mode {
	case ModeKeepCount:
		return fmt.Sprintf("keep the %d most recent backups", p.count)
	case ModeKeepSince:
		return fmt.Sprintf("keep backups from the last %d days", p.days)
	case ModeKeepCompatibleOnly:
		return "keep compatible backups only"
	}
	return "no retention policy"
}

// Cutoff is the oldest end timestamp a KeepSince policy keeps.
func (p Policy) Cutoff(now time.Time) time.Time {
	return now.UTC().AddDate(0, 0, -p.days)
}

// ParseKeep parses the command line form of a retention rule: "3" keeps three
// backups, "30d" keeps thirty days.
func ParseKeep(s string) (Policy, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(v, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(v, "d"))
		if err != nil {
			return Policy{}, fmt.Errorf("%w: %q is not a number of days", ErrInvalidPolicy, s)
		}
		p := KeepSince(days)
		return p, p.Validate()
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return Policy{}, fmt.Errorf("%w: %q is neither a count nor a number of days", ErrInvalidPolicy, s)
	}
	p := KeepCount(n)
	return p, p.Validate()
}

// FromOptions resolves the mutually exclusive purge options into one Policy.
// The compatible-only switch wins over keep, matching the purge command.
func FromOptions(keep string, compatibleOnly bool) (Policy, error) {
	if compatibleOnly {
		return KeepCompatibleOnly(), nil
	}
	return ParseKeep(keep)
}

// SelectForDeletion returns the backups policy deletes, in input order.
//
// backups must be sorted by end timestamp, most recent first; the order is
// not checked and an ascending input inverts what KeepCount keeps.
func SelectForDeletion(backups []backupapi.Backup, policy Policy, now time.Time) ([]backupapi.Backup, error) {
	_, deleted, err := Partition(backups, policy, now)
	return deleted, err
}

// Partition splits backups into the kept and deleted sets. A backup id that
// is kept anywhere in the input is never deleted, and no id is deleted twice.
func Partition(backups []backupapi.Backup, policy Policy, now time.Time) (kept, deleted []backupapi.Backup, err error) {
	if err := policy.Validate(); err != nil {
		return nil, nil, err
	}

	keep := make([]bool, len(backups))
	keptIDs := make(map[string]struct{})
	for i, b := range backups {
		keep[i] = policy.keeps(i, b, now)
		if keep[i] {
			keptIDs[b.BackupID] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	for i, b := range backups {
		if keep[i] {
			kept = append(kept, b)
			continue
		}
		if _, ok := keptIDs[b.BackupID]; ok {
			continue
		}
		if _, ok := seen[b.BackupID]; ok {
			continue
		}
		seen[b.BackupID] = struct{}{}
		deleted = append(deleted, b)
	}
	return kept, deleted, nil
}

func (p Policy) keeps(pos int, b backupapi.Backup, now time.Time) bool {
	switch p.mode {
	case ModeKeepCount:
		return pos < p.count
	case ModeKeepSince:
		return !b.EndTimestamp.Before(p.Cutoff(now))
	case ModeKeepCompatibleOnly:
		return b.Compatible
	}
	return true
}
