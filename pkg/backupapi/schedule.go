package backupapi

import (
	"context"
	"encoding/json"
	"time"
)

// sidecarBackupURL is the in-cluster endpoint the appliance scheduler calls
// when a scheduled backup fires.
const sidecarBackupURL = "http://glusterfs-brick.maglev-system.svc.cluster.local:8080/api/v1/sidecar/backup/1234"

// Schedule is a recurring backup registered on the appliance scheduler.
type Schedule struct {
	Name        string
	UpcomingRun time.Time
	Cron        string
}

func (s *Schedule) UnmarshalJSON(data []byte) error {
	var sj struct {
		Name        string  `json:"name"`
		UpcomingRun float64 `json:"upcoming_run"`
		Schedule    string  `json:"schedule"`
	}
	if err := json.Unmarshal(data, &sj); err != nil {
		return err
	}
	*s = Schedule{Name: sj.Name, UpcomingRun: epoch(sj.UpcomingRun), Cron: sj.Schedule}
	return nil
}

// SchedulePayload is the body of a schedule create request.
type SchedulePayload struct {
	Schedule    string            `json:"schedule"`
	JSONPayload ScheduledBackup   `json:"json_payload"`
	Env         map[string]string `json:"env"`
	URL         string            `json:"url"`
}

// ScheduledBackup describes the backup the appliance creates on each run.
type ScheduledBackup struct {
	Description string                            `json:"description"`
	AppStacks   map[string]map[string]interface{} `json:"appstacks"`
}

// NewSchedulePayload builds the create payload for a named schedule running at
// the given cron expression.
func NewSchedulePayload(name, cronExpr string) *SchedulePayload {
	return &SchedulePayload{
		Schedule: cronExpr,
		JSONPayload: ScheduledBackup{
			Description: name,
			AppStacks:   map[string]map[string]interface{}{"ndp": {}},
		},
		Env: map[string]string{},
		URL: sidecarBackupURL,
	}
}

func (c *Client) schedulePath() string {
	return "/api/system/v1/maglev/schedule/backup"
}

func (c *Client) scheduleItemPath(name string) string {
	return c.schedulePath() + "/" + name
}

// GetSchedule returns the schedules registered on the appliance. An empty list
// means there is none.
func (c *Client) GetSchedule(ctx context.Context) ([]Schedule, error) {
	var schedules []Schedule
	if err := c.getResponse(ctx, c.schedulePath(), &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

// CreateSchedule registers a new schedule under name.
func (c *Client) CreateSchedule(ctx context.Context, name string, payload *SchedulePayload) error {
	return c.callResponse(ctx, OpPost, c.scheduleItemPath(name), payload, nil)
}

// DeleteSchedule removes the schedule registered under name.
func (c *Client) DeleteSchedule(ctx context.Context, name string) error {
	return c.callResponse(ctx, OpDelete, c.scheduleItemPath(name), nil, nil)
}
