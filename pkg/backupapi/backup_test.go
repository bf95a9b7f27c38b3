package backupapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listBackupsResponse = `
{
    "response": [
        {
            "_id": "5f1c",
            "backup_id": "b-newest",
            "backup_size": 104857600,
            "compatible": "TRUE",
            "description": "nightly",
            "end_timestamp": 1700000300,
            "start_timestamp": 1700000000,
            "status": "SUCCESS",
            "tenantId": "t1"
        },
        {
            "backup_id": "b-oldest",
            "backup_size": 2.5e8,
            "compatible": "FALSE",
            "description": "before upgrade",
            "end_timestamp": 1600000300.5,
            "start_timestamp": 1600000000,
            "status": "SUCCESS"
        },
        {
            "backup_id": "b-middle",
            "backup_size": 0,
            "compatible": "true",
            "description": "manual",
            "end_timestamp": 1650000300,
            "start_timestamp": 1650000000,
            "status": "FAILED"
        }
    ],
    "version": "1.0"
}`

func TestClient_backupPaths(t *testing.T) {
	setUp()
	defer tearDown()

	assert.Equal(t, "/api/system/v1/maglev/backup", client.backupPath())
	assert.Equal(t, "/api/system/v1/maglev/backup/b-1", client.backupItemPath("b-1"))
	assert.Equal(t, "/api/system/v1/maglev/backup/history", client.backupHistoryPath())
	assert.Equal(t, "/api/system/v1/maglev/backup/progress", client.backupProgressPath())
}

func TestClient_ListBackups(t *testing.T) {
	setUp()
	defer tearDown()

	mux.HandleFunc(client.backupPath(), func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "token-1", r.Header.Get("X-Auth-Token"))
		_, _ = fmt.Fprint(w, listBackupsResponse)
	})

	backups, err := client.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, "b-oldest", backups[0].BackupID)
	assert.Equal(t, "b-middle", backups[1].BackupID)
	assert.Equal(t, "b-newest", backups[2].BackupID)

	assert.False(t, backups[0].Compatible)
	assert.True(t, backups[1].Compatible)
	assert.True(t, backups[2].Compatible)
	assert.EqualValues(t, 250000000, backups[0].BackupSize)
	assert.Equal(t, time.Unix(1700000300, 0).UTC(), backups[2].EndTimestamp)
	assert.Equal(t, 500*time.Millisecond, backups[0].EndTimestamp.Sub(time.Unix(1600000300, 0)))

	desc, err := client.ListBackupsDesc(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b-newest", desc[0].BackupID)
	assert.Equal(t, "b-oldest", desc[2].BackupID)
}

func TestClient_ListBackupsInvalidFlag(t *testing.T) {
	setUp()
	defer tearDown()

	mux.HandleFunc(client.backupPath(), func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"response": [{"backup_id": "b-1", "compatible": "MAYBE", "end_timestamp": 1}]}`)
	})

	_, err := client.ListBackups(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidData))
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"TRUE", true, false},
		{"FALSE", false, false},
		{"false", false, false},
		{" True ", true, false},
		{"", false, true},
		{"yes", false, true},
	}
	for _, tc := range tests {
		got, err := ParseFlag(tc.in)
		if tc.wantErr {
			assert.True(t, errors.Is(err, ErrInvalidData), tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
	assert.Equal(t, "TRUE", FormatFlag(true))
	assert.Equal(t, "FALSE", FormatFlag(false))
}

func TestBackup_MarshalJSON(t *testing.T) {
	b := Backup{BackupID: "b-1", Compatible: true, EndTimestamp: time.Unix(100, 0).UTC()}
	buf, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(buf), `"compatible":"TRUE"`)
	assert.Contains(t, string(buf), `"end_timestamp":100`)

	var got Backup
	require.NoError(t, json.Unmarshal(buf, &got))
	assert.Equal(t, b, got)
}

func TestClient_BackupHistoryAndProgress(t *testing.T) {
	setUp()
	defer tearDown()

	mux.HandleFunc(client.backupHistoryPath(), func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"response": [
			{"id": "j1", "backup_id": "b-1", "operation": "BACKUP", "status": "SUCCESS", "progress_in_percentage": 100, "start_timestamp": 1700000000},
			{"id": "j2", "backup_id": "b-2", "operation": "BACKUP", "status": "PENDING", "progress_in_percentage": 0}
		]}`)
	})
	mux.HandleFunc(client.backupProgressPath(), func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"response": [{"id": "j3", "backup_id": "b-3", "status": "IN_PROGRESS", "progress_in_percentage": 42.5}]}`)
	})

	history, err := client.BackupHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].InProgress())
	assert.True(t, history[1].InProgress())
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), history[0].StartTimestamp)

	progress, err := client.BackupProgress(context.Background())
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, 42.5, progress[0].ProgressPercentage)
}

func TestClient_CreateBackup(t *testing.T) {
	setUp()
	defer tearDown()

	mux.HandleFunc(client.backupPath(), func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req CreateBackupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Description == "duplicate" {
			_, _ = fmt.Fprint(w, `{"response": {"error": "backup already in progress"}}`)
			return
		}
		_, _ = fmt.Fprint(w, `{"response": "new-backup-id", "version": "1.0"}`)
	})

	id, err := client.CreateBackup(context.Background(), "nightly")
	require.NoError(t, err)
	assert.Equal(t, "new-backup-id", id)

	_, err = client.CreateBackup(context.Background(), "duplicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup already in progress")
}

func TestClient_DeleteBackup(t *testing.T) {
	setUp()
	defer tearDown()

	mux.HandleFunc(client.backupItemPath("b-1"), func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		_, _ = fmt.Fprint(w, `{"response": {"status": "ok", "message": "Backup b-1 deleted"}}`)
	})
	mux.HandleFunc(client.backupItemPath("b-missing"), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"response": {"error": "no such backup"}}`)
	})
	mux.HandleFunc(client.backupItemPath("b-busy"), func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"response": {"status": "failed", "message": "backup is locked"}}`)
	})

	dr, err := client.DeleteBackup(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, "Backup b-1 deleted", dr.Message)

	_, err = client.DeleteBackup(context.Background(), "b-missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = client.DeleteBackup(context.Background(), "b-busy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup is locked")
}
