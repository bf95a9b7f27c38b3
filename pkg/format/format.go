// Package format renders appliance records as console tables.
package format

import (
	"fmt"
	"time"

	"github.com/bizflycloud/bizflyctl/formatter"
	"github.com/dustin/go-humanize"

	"github.com/ciscodnac/dnac-backup/pkg/backupapi"
	"github.com/ciscodnac/dnac-backup/pkg/remoteschedule"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	BackupHeaders   = []string{"BACKUP_ID", "DESCRIPTION", "STATUS", "COMPATIBLE", "BACKUP_SIZE", "START_TIMESTAMP", "END_TIMESTAMP", "AGE"}
	JobHeaders      = []string{"ID", "BACKUP_ID", "OPERATION", "STATUS", "PROGRESS_IN_PERCENTAGE", "DESCRIPTION", "BACKUP_SIZE", "START_TIMESTAMP"}
	ScheduleHeaders = []string{"MESSAGE", "NAME", "UPCOMING_RUN"}
	SettingHeaders  = []string{"SETTING", "VALUE"}
)

// Renderer turns records into rows, with times in one location.
type Renderer struct {
	Location *time.Location
	Now      func() time.Time
}

// New returns a Renderer using the local time zone and clock.
func New() *Renderer {
	return &Renderer{Location: time.Local, Now: time.Now}
}

// Table prints rows under headers to stdout.
func Table(headers []string, rows [][]string) {
	formatter.Output(headers, rows)
}

func (r *Renderer) timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.Location).Format(timeLayout)
}

// Size renders a byte count the way the appliance UI does.
func Size(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Percentage truncates p to a whole percent.
func Percentage(p float64) string {
	return fmt.Sprintf("%d%%", int(p))
}

// BackupRows renders one row per backup, in input order.
func (r *Renderer) BackupRows(backups []backupapi.Backup) [][]string {
	now := r.Now()
	rows := make([][]string, 0, len(backups))
	for _, b := range backups {
		age := ""
		if !b.EndTimestamp.IsZero() {
			age = humanize.RelTime(b.EndTimestamp, now, "ago", "from now")
		}
		rows = append(rows, []string{
			b.BackupID,
			b.Description,
			b.Status,
			backupapi.FormatFlag(b.Compatible),
			Size(b.BackupSize),
			r.timestamp(b.StartTimestamp),
			r.timestamp(b.EndTimestamp),
			age,
		})
	}
	return rows
}

// HistoryRows renders finished and running jobs. Pending jobs are left out.
func (r *Renderer) HistoryRows(jobs []backupapi.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		if j.Status == backupapi.BackupStatusPending {
			continue
		}
		rows = append(rows, r.jobRow(j))
	}
	return rows
}

// ProgressRows renders every job, pending ones included.
func (r *Renderer) ProgressRows(jobs []backupapi.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, r.jobRow(j))
	}
	return rows
}

func (r *Renderer) jobRow(j backupapi.Job) []string {
	return []string{
		j.ID,
		j.BackupID,
		j.Operation,
		j.Status,
		Percentage(j.ProgressPercentage),
		j.Description,
		Size(j.BackupSize),
		r.timestamp(j.StartTimestamp),
	}
}

// ScheduleRow renders the outcome of a remote schedule change.
func ScheduleRow(o *remoteschedule.Outcome) [][]string {
	name := ""
	if o.Result == remoteschedule.Created || o.Result == remoteschedule.AlreadyExists {
		name = o.Name
	}
	return [][]string{{o.Message(), name, o.UpcomingRunUTC()}}
}

// SettingRows renders name/value pairs, in order.
func SettingRows(pairs ...[2]string) [][]string {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p[0], p[1]})
	}
	return rows
}
