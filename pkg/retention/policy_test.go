package retention

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciscodnac/dnac-backup/pkg/backupapi"
)

func backupAt(id string, end int64, compatible bool) backupapi.Backup {
	return backupapi.Backup{
		BackupID:     id,
		Status:       backupapi.BackupStatusSuccess,
		Compatible:   compatible,
		EndTimestamp: time.Unix(end, 0).UTC(),
	}
}

func ids(backups []backupapi.Backup) []string {
	out := make([]string, 0, len(backups))
	for _, b := range backups {
		out = append(out, b.BackupID)
	}
	return out
}

// scenario is sorted newest first.
func scenario() []backupapi.Backup {
	return []backupapi.Backup{
		backupAt("A", 100, true),
		backupAt("B", 90, false),
		backupAt("C", 80, true),
	}
}

func TestSelectForDeletion_Scenarios(t *testing.T) {
	now := time.Unix(100, 0)
	farFuture := time.Unix(100+31*86400, 0)

	tests := []struct {
		name   string
		policy Policy
		now    time.Time
		want   []string
	}{
		{"keep one", KeepCount(1), now, []string{"B", "C"}},
		{"keep compatible only", KeepCompatibleOnly(), now, []string{"B"}},
		{"keep thirty days, all older", KeepSince(30), farFuture, []string{"A", "B", "C"}},
		{"keep more than available", KeepCount(5), now, []string{}},
		{"keep zero", KeepCount(0), now, []string{"A", "B", "C"}},
		{"keep thirty days, all recent", KeepSince(30), now, []string{}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := SelectForDeletion(scenario(), tc.policy, tc.now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestSelectForDeletion_InvalidPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"negative count", KeepCount(-1)},
		{"zero days", KeepSince(0)},
		{"negative days", KeepSince(-7)},
		{"zero value", Policy{}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := SelectForDeletion(scenario(), tc.policy, time.Now())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPolicy))
			assert.Nil(t, got)
		})
	}
}

func TestKeepSince_InclusiveBoundary(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-30 * 24 * time.Hour)
	backups := []backupapi.Backup{
		{BackupID: "after", EndTimestamp: cutoff.Add(time.Second)},
		{BackupID: "exact", EndTimestamp: cutoff},
		{BackupID: "before", EndTimestamp: cutoff.Add(-time.Second)},
	}

	assert.Equal(t, cutoff, KeepSince(30).Cutoff(now))
	got, err := SelectForDeletion(backups, KeepSince(30), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"before"}, ids(got))
}

func TestPartition_DuplicateIDs(t *testing.T) {
	backups := []backupapi.Backup{
		backupAt("A", 100, true),
		backupAt("B", 90, true),
		backupAt("A", 80, true),
		backupAt("B", 70, true),
		backupAt("C", 60, true),
		backupAt("C", 50, true),
	}
	kept, deleted, err := Partition(backups, KeepCount(1), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids(kept))
	assert.Equal(t, []string{"B", "C"}, ids(deleted))
}

func randomBackups(r *rand.Rand, n int, now time.Time) []backupapi.Backup {
	backups := make([]backupapi.Backup, n)
	end := now
	for i := range backups {
		end = end.Add(-time.Duration(r.Intn(5*86400)) * time.Second)
		backups[i] = backupapi.Backup{
			BackupID:     fmt.Sprintf("b-%03d", i),
			Compatible:   r.Intn(2) == 0,
			EndTimestamp: end,
		}
	}
	return backups
}

func TestPartition_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for iter := 0; iter < 200; iter++ {
		backups := randomBackups(r, r.Intn(40), now)

		n := r.Intn(50)
		kept, deleted, err := Partition(backups, KeepCount(n), now)
		require.NoError(t, err)
		wantKept := n
		if len(backups) < n {
			wantKept = len(backups)
		}
		assert.Len(t, kept, wantKept)
		assert.Equal(t, ids(backups[wantKept:]), ids(deleted))
		assertDisjoint(t, kept, deleted)

		days := 1 + r.Intn(60)
		cutoff := now.Add(-time.Duration(days) * 86400 * time.Second)
		kept, deleted, err = Partition(backups, KeepSince(days), now)
		require.NoError(t, err)
		assert.Len(t, deleted, len(backups)-len(kept))
		for _, b := range kept {
			assert.False(t, b.EndTimestamp.Before(cutoff))
		}
		for _, b := range deleted {
			assert.True(t, b.EndTimestamp.Before(cutoff))
		}

		kept, deleted, err = Partition(backups, KeepCompatibleOnly(), now)
		require.NoError(t, err)
		for _, b := range kept {
			assert.True(t, b.Compatible)
		}
		for _, b := range deleted {
			assert.False(t, b.Compatible)
		}
		assert.Len(t, deleted, len(backups)-len(kept))
	}
}

func assertDisjoint(t *testing.T, kept, deleted []backupapi.Backup) {
	t.Helper()
	in := make(map[string]bool, len(kept))
	for _, b := range kept {
		in[b.BackupID] = true
	}
	for _, b := range deleted {
		assert.False(t, in[b.BackupID], "%s both kept and deleted", b.BackupID)
	}
}

func TestSelectForDeletion_Idempotent(t *testing.T) {
	now := time.Now()
	backups := randomBackups(rand.New(rand.NewSource(7)), 25, now)
	for _, p := range []Policy{KeepCount(3), KeepSince(10), KeepCompatibleOnly()} {
		first, err := SelectForDeletion(backups, p, now)
		require.NoError(t, err)
		second, err := SelectForDeletion(backups, p, now)
		require.NoError(t, err)
		assert.Equal(t, first, second, p.String())
	}
}

func TestSelectForDeletion_DoesNotMutateInput(t *testing.T) {
	backups := scenario()
	_, err := SelectForDeletion(backups, KeepCount(1), time.Now())
	require.NoError(t, err)
	assert.Equal(t, scenario(), backups)
}

func TestParseKeep(t *testing.T) {
	tests := []struct {
		in      string
		mode    Mode
		value   int
		wantErr bool
	}{
		{"3", ModeKeepCount, 3, false},
		{"0", ModeKeepCount, 0, false},
		{"30d", ModeKeepSince, 30, false},
		{" 7D ", ModeKeepSince, 7, false},
		{"0d", 0, 0, true},
		{"-1", 0, 0, true},
		{"d", 0, 0, true},
		{"three", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tc := range tests {
		p, err := ParseKeep(tc.in)
		if tc.wantErr {
			assert.True(t, errors.Is(err, ErrInvalidPolicy), "%q", tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.mode, p.Mode(), tc.in)
		if tc.mode == ModeKeepCount {
			assert.Equal(t, tc.value, p.Count())
		} else {
			assert.Equal(t, tc.value, p.Days())
		}
	}
}

func TestFromOptions(t *testing.T) {
	p, err := FromOptions("3", true)
	require.NoError(t, err)
	assert.Equal(t, ModeKeepCompatibleOnly, p.Mode())

	p, err = FromOptions("14d", false)
	require.NoError(t, err)
	assert.Equal(t, KeepSince(14), p)
}
