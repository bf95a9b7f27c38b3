package backupapi

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	BackupStatusPending    = "PENDING"
	BackupStatusInProgress = "IN_PROGRESS"
	BackupStatusSuccess    = "SUCCESS"
	BackupStatusFailed     = "FAILED"
)

// Backup is a backup stored on the appliance.
type Backup struct {
	BackupID       string
	Description    string
	Status         string
	Compatible     bool
	BackupSize     int64
	StartTimestamp time.Time
	EndTimestamp   time.Time
}

type backupJSON struct {
	BackupID       string  `json:"backup_id"`
	Description    string  `json:"description"`
	Status         string  `json:"status"`
	Compatible     string  `json:"compatible"`
	BackupSize     float64 `json:"backup_size"`
	StartTimestamp float64 `json:"start_timestamp"`
	EndTimestamp   float64 `json:"end_timestamp"`
}

// UnmarshalJSON decodes the appliance representation, normalizing the
// "TRUE"/"FALSE" compatible flag.
func (b *Backup) UnmarshalJSON(data []byte) error {
	var bj backupJSON
	if err := json.Unmarshal(data, &bj); err != nil {
		return err
	}
	compatible, err := ParseFlag(bj.Compatible)
	if err != nil {
		return fmt.Errorf("backup %s: compatible: %w", bj.BackupID, err)
	}
	*b = Backup{
		BackupID:       bj.BackupID,
		Description:    bj.Description,
		Status:         bj.Status,
		Compatible:     compatible,
		BackupSize:     int64(bj.BackupSize),
		StartTimestamp: epoch(bj.StartTimestamp),
		EndTimestamp:   epoch(bj.EndTimestamp),
	}
	return nil
}

// MarshalJSON writes the appliance representation.
func (b Backup) MarshalJSON() ([]byte, error) {
	return json.Marshal(backupJSON{
		BackupID:       b.BackupID,
		Description:    b.Description,
		Status:         b.Status,
		Compatible:     FormatFlag(b.Compatible),
		BackupSize:     float64(b.BackupSize),
		StartTimestamp: unixSeconds(b.StartTimestamp),
		EndTimestamp:   unixSeconds(b.EndTimestamp),
	})
}

// ParseFlag converts the appliance boolean-as-string into a bool.
func ParseFlag(s string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRUE":
		return true, nil
	case "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("%w: unexpected flag value %q", ErrInvalidData, s)
}

// FormatFlag is the inverse of ParseFlag.
func FormatFlag(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Job is an entry of the backup history or progress lists.
type Job struct {
	ID                 string
	BackupID           string
	Operation          string
	Status             string
	Description        string
	ProgressPercentage float64
	BackupSize         int64
	StartTimestamp     time.Time
}

// InProgress reports whether the job has not reached a final state yet.
func (j Job) InProgress() bool {
	return j.Status == BackupStatusPending || j.Status == BackupStatusInProgress
}

func (j *Job) UnmarshalJSON(data []byte) error {
	var jj struct {
		ID                 string  `json:"id"`
		BackupID           string  `json:"backup_id"`
		Operation          string  `json:"operation"`
		Status             string  `json:"status"`
		Description        string  `json:"description"`
		ProgressPercentage float64 `json:"progress_in_percentage"`
		BackupSize         float64 `json:"backup_size"`
		StartTimestamp     float64 `json:"start_timestamp"`
	}
	if err := json.Unmarshal(data, &jj); err != nil {
		return err
	}
	*j = Job{
		ID:                 jj.ID,
		BackupID:           jj.BackupID,
		Operation:          jj.Operation,
		Status:             jj.Status,
		Description:        jj.Description,
		ProgressPercentage: jj.ProgressPercentage,
		BackupSize:         int64(jj.BackupSize),
		StartTimestamp:     epoch(jj.StartTimestamp),
	}
	return nil
}

// DeleteResult is the appliance answer to a backup delete.
type DeleteResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateBackupRequest represents a request to create a backup.
type CreateBackupRequest struct {
	Description string `json:"description"`
}

func (c *Client) backupPath() string {
	return "/api/system/v1/maglev/backup"
}

func (c *Client) backupItemPath(backupID string) string {
	return c.backupPath() + "/" + backupID
}

func (c *Client) backupHistoryPath() string {
	return c.backupPath() + "/history"
}

func (c *Client) backupProgressPath() string {
	return c.backupPath() + "/progress"
}

// ListBackups lists all backups sorted by end timestamp, oldest first.
func (c *Client) ListBackups(ctx context.Context) ([]Backup, error) {
	var backups []Backup
	if err := c.getResponse(ctx, c.backupPath(), &backups); err != nil {
		return nil, err
	}
	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].EndTimestamp.Before(backups[j].EndTimestamp)
	})
	return backups, nil
}

// ListBackupsDesc lists all backups, most recent first.
func (c *Client) ListBackupsDesc(ctx context.Context) ([]Backup, error) {
	backups, err := c.ListBackups(ctx)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(backups)
	return backups, nil
}

// SortNewestFirst orders backups by end timestamp, most recent first.
func SortNewestFirst(backups []Backup) {
	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].EndTimestamp.After(backups[j].EndTimestamp)
	})
}

// BackupHistory lists past backup and restore operations.
func (c *Client) BackupHistory(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := c.getResponse(ctx, c.backupHistoryPath(), &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// BackupProgress lists operations currently running on the appliance.
func (c *Client) BackupProgress(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := c.getResponse(ctx, c.backupProgressPath(), &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// CreateBackup starts a new backup and returns its id.
func (c *Client) CreateBackup(ctx context.Context, description string) (string, error) {
	var env envelope
	if err := c.call(ctx, OpPost, c.backupPath(), &CreateBackupRequest{Description: description}, &env); err != nil {
		return "", err
	}

	var id string
	if err := json.Unmarshal(env.Response, &id); err == nil {
		return id, nil
	}
	return "", &RemoteError{Op: OpPost, StatusCode: http.StatusOK, Message: errorMessage(env.Response)}
}

// DeleteBackup deletes a single backup.
func (c *Client) DeleteBackup(ctx context.Context, backupID string) (*DeleteResult, error) {
	var dr DeleteResult
	if err := c.callResponse(ctx, OpDelete, c.backupItemPath(backupID), nil, &dr); err != nil {
		return nil, err
	}
	if dr.Status != "ok" {
		return nil, &RemoteError{Op: OpDelete, StatusCode: http.StatusOK, Message: dr.Message}
	}
	return &dr, nil
}

// envelope is the wrapper the appliance puts around every payload.
type envelope struct {
	Response json.RawMessage `json:"response"`
	Version  string          `json:"version"`
}

func (c *Client) getResponse(ctx context.Context, relPath string, out interface{}) error {
	return c.callResponse(ctx, OpGet, relPath, nil, out)
}

func (c *Client) callResponse(ctx context.Context, op Operation, relPath string, body, out interface{}) error {
	var env envelope
	if err := c.call(ctx, op, relPath, body, &env); err != nil {
		return err
	}
	if out == nil || len(env.Response) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", op, relPath, err)
	}
	return nil
}

func epoch(f float64) time.Time {
	if f == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}
