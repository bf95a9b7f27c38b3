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
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/backupapi"
	"github.com/ciscodnac/dnac-backup/pkg/broker"
	"github.com/ciscodnac/dnac-backup/pkg/config"
	"github.com/ciscodnac/dnac-backup/pkg/purge"
	"github.com/ciscodnac/dnac-backup/pkg/retention"
)

func init() {
	logger = zap.NewNop()
}

func Test_parseAnswer(t *testing.T) {
	tests := []struct {
		in     string
		answer bool
		ok     bool
	}{
		{"y\n", true, true},
		{"YES", true, true},
		{" true ", true, true},
		{"n", false, true},
		{"No\n", false, true},
		{"0", false, true},
		{"maybe", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		answer, ok := parseAnswer(tt.in)
		assert.Equal(t, tt.answer, answer, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func Test_promptConfirmer(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    bool
		wantErr error
	}{
		{"yes", "y\n", true, nil},
		{"no", "n\n", false, nil},
		{"retry then yes", "what\ny\n", true, nil},
		{"no newline", "yes", true, nil},
		{"eof", "", false, io.EOF},
		{"too many bad answers", "a\nb\nc\ny\n", false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := newPromptConfirmer(strings.NewReader(tt.input), &out)
			got, err := p.ask()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err)
			assert.Contains(t, out.String(), confirmPrompt)
		})
	}
}

func Test_printPurgeResult(t *testing.T) {
	candidates := []backupapi.Backup{{BackupID: "a"}, {BackupID: "b"}}
	tests := []struct {
		name string
		res  *purge.Result
		want []string
	}{
		{"nothing", &purge.Result{}, []string{"No backup to delete"}},
		{"aborted", &purge.Result{Candidates: candidates, Aborted: true}, []string{"Warning: Purge aborted"}},
		{"partial", &purge.Result{
			Candidates: candidates,
			Deleted:    []string{"a"},
			Failed:     []purge.Failure{{ID: "b", Err: backupapi.ErrNotFound}},
		}, []string{"Success: Backups (1) deleted a", "Error: Backup b not deleted: not found"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			printPurgeResult(&out, tt.res)
			for _, w := range tt.want {
				assert.Contains(t, out.String(), w)
			}
		})
	}
}

func Test_whoamiRows(t *testing.T) {
	cfg := &config.Config{
		DNAC:   config.Appliance{Hostname: "dnac.example.com", Username: "admin", Password: "secret"},
		Source: config.SourceEnv,
	}
	rows := whoamiRows(cfg)
	assert.Equal(t, [][]string{
		{"HOSTNAME", "dnac.example.com"},
		{"USERNAME", "admin"},
		{"SECURE", "false"},
		{"METHOD", "environment"},
	}, rows)
	for _, r := range rows {
		assert.NotContains(t, r[1], "secret")
	}

	cfg.File = "/home/u/.dnac-backup.yaml"
	assert.Len(t, whoamiRows(cfg), 5)
}

type fakeAppliance struct {
	backups   []backupapi.Backup
	deleted   []string
	createErr error
	final     string
}

func (f *fakeAppliance) ListBackups(ctx context.Context) ([]backupapi.Backup, error) {
	return f.backups, nil
}

func (f *fakeAppliance) DeleteBackup(ctx context.Context, id string) (*backupapi.DeleteResult, error) {
	f.deleted = append(f.deleted, id)
	return &backupapi.DeleteResult{Status: "ok"}, nil
}

func (f *fakeAppliance) CreateBackup(ctx context.Context, description string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return "new-id", nil
}

func (f *fakeAppliance) WaitForBackup(ctx context.Context, id string) (*backupapi.Job, error) {
	return &backupapi.Job{BackupID: id, Status: f.final}, nil
}

type recordingBroker struct {
	payloads [][]byte
}

func (b *recordingBroker) Connect() error { return nil }
func (b *recordingBroker) ConnectAndSubscribe(h broker.Handler, topics []string) error {
	return nil
}
func (b *recordingBroker) Disconnect() error                                 { return nil }
func (b *recordingBroker) Subscribe(topics []string, h broker.Handler) error { return nil }
func (b *recordingBroker) String() string                                    { return "recording" }
func (b *recordingBroker) Publish(topic string, payload interface{}) error {
	b.payloads = append(b.payloads, payload.([]byte))
	return nil
}

func (b *recordingBroker) last(t *testing.T) broker.Message {
	t.Helper()
	require.NotEmpty(t, b.payloads)
	msg, err := broker.DecodeMessage(b.payloads[len(b.payloads)-1])
	require.NoError(t, err)
	return msg
}

func testRunner(f *fakeAppliance, policy retention.Policy) (*jobRunner, *recordingBroker) {
	rb := &recordingBroker{}
	r := newJobRunner(f, "dnac.example.com", policy, broker.NewNotifier(rb, "", nil))
	r.now = func() time.Time { return time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC) }
	return r, rb
}

func Test_jobRunner_purge(t *testing.T) {
	f := &fakeAppliance{backups: []backupapi.Backup{
		{BackupID: "old", EndTimestamp: time.Unix(10, 0)},
		{BackupID: "new", EndTimestamp: time.Unix(20, 0)},
	}}
	r, rb := testRunner(f, retention.KeepCount(1))

	require.NoError(t, r.purge())
	assert.Equal(t, []string{"old"}, f.deleted)

	msg := rb.last(t)
	assert.Equal(t, broker.PurgeCompleted, msg.EventType)
	assert.Equal(t, []string{"old"}, msg.Deleted)
	assert.Equal(t, 1, msg.Kept)
	assert.Equal(t, "dnac.example.com", msg.Host)
}

func Test_jobRunner_backup(t *testing.T) {
	f := &fakeAppliance{final: backupapi.BackupStatusSuccess}
	r, rb := testRunner(f, retention.KeepCount(1))

	require.NoError(t, r.backup())
	msg := rb.last(t)
	assert.Equal(t, broker.BackupCompleted, msg.EventType)
	assert.Equal(t, "new-id", msg.BackupID)
	assert.Equal(t, "dnac-backup-20240203040506", msg.Description)

	f.final = backupapi.BackupStatusFailed
	require.Error(t, r.backup())
	assert.Equal(t, broker.BackupFailed, rb.last(t).EventType)

	f.createErr = backupapi.ErrRemoteUnavailable
	err := r.backup()
	assert.True(t, errors.Is(err, backupapi.ErrRemoteUnavailable))
	msg = rb.last(t)
	assert.Equal(t, broker.BackupFailed, msg.EventType)
	assert.Empty(t, msg.BackupID)
}

func Test_jobRunner_byName(t *testing.T) {
	r, _ := testRunner(&fakeAppliance{}, retention.KeepCount(1))
	for _, name := range []string{"purge", "Backup"} {
		job, err := r.byName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, job)
	}
	_, err := r.byName("restore")
	assert.Error(t, err)
}

func Test_eventRow(t *testing.T) {
	msg := broker.Message{
		EventType: broker.PurgeFailed,
		Host:      "h",
		CreatedAt: "2024-02-03T04:05:06Z",
		Policy:    "keep the 3 most recent backups",
		Deleted:   []string{"a"},
		Failed:    []string{"b"},
		Error:     "boom",
	}
	assert.Equal(t, []string{"2024-02-03T04:05:06Z", "purge_failed", "h", "keep the 3 most recent backups, deleted a, failed b: boom"}, eventRow(msg))

	msg = broker.Message{EventType: broker.BackupCompleted, Description: "nightly", BackupID: "x"}
	assert.Equal(t, "nightly (x)", eventRow(msg)[3])
}

func Test_versionCmd(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionShort = true
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "dev\n", buf.String())

	buf.Reset()
	versionShort = false
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, buf.String(), "User agent:  dnac-backup/dev")
	assert.Contains(t, buf.String(), "This is a development build.")
}
