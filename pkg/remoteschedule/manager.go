// Package remoteschedule registers recurring backups on the appliance's own
// scheduler.
package remoteschedule

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/backupapi"
	"github.com/ciscodnac/dnac-backup/pkg/schedule"
)

// UpcomingRunLayout formats the next run of an existing schedule, in UTC.
const UpcomingRunLayout = "2006-01-02 15:04"

// Client is the part of the appliance API the Manager needs.
type Client interface {
	GetSchedule(ctx context.Context) ([]backupapi.Schedule, error)
	CreateSchedule(ctx context.Context, name string, payload *backupapi.SchedulePayload) error
	DeleteSchedule(ctx context.Context, name string) error
}

// Result says what a Create or Delete did.
type Result int

const (
	Created Result = iota + 1
	AlreadyExists
	Deleted
	NothingToDelete
	NameMismatch
)

func (r Result) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyExists:
		return "already-exists"
	case Deleted:
		return "deleted"
	case NothingToDelete:
		return "nothing-to-delete"
	case NameMismatch:
		return "name-mismatch"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// Outcome is reported to the operator after a Create or Delete.
type Outcome struct {
	Result Result
	// Name is the schedule created, deleted or found in the way.
	Name string
	// Cron is the expression submitted on Created.
	Cron string
	// UpcomingRun is set on AlreadyExists.
	UpcomingRun time.Time
}

func (o Outcome) Message() string {
	switch o.Result {
	case Created:
		return "There is now a scheduled backup"
	case AlreadyExists:
		return "There already exists a scheduled backup"
	case Deleted:
		return fmt.Sprintf("Backup with the name '%s' has been deleted", o.Name)
	case NothingToDelete:
		return "There is no scheduled backup available to delete"
	case NameMismatch:
		return fmt.Sprintf("No backup with the name '%s' exists.", o.Name)
	}
	return o.Result.String()
}

// UpcomingRunUTC renders UpcomingRun, or "" when unset.
func (o Outcome) UpcomingRunUTC() string {
	if o.UpcomingRun.IsZero() {
		return ""
	}
	return o.UpcomingRun.UTC().Format(UpcomingRunLayout)
}

// Manager keeps at most one schedule on the appliance. Existing schedules are
// never updated in place.
type Manager struct {
	client Client
	logger *zap.Logger
}

func NewManager(client Client, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{client: client, logger: logger}
}

// Create registers name to run on the days and time of spec.
func (m *Manager) Create(ctx context.Context, name string, spec schedule.Spec) (*Outcome, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return m.CreateOnDays(ctx, name, spec.Days(), spec.At)
}

// CreateOnDays registers name to run on each of days at at. If any schedule
// already exists nothing is submitted and the existing one is reported.
func (m *Manager) CreateOnDays(ctx context.Context, name string, days []time.Weekday, at schedule.TimeOfDay) (*Outcome, error) {
	expr, err := BuildCron(days, at)
	if err != nil {
		return nil, err
	}

	existing, err := m.client.GetSchedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	if len(existing) > 0 {
		m.logger.Info("schedule already exists",
			zap.String("name", existing[0].Name),
			zap.Time("upcoming_run", existing[0].UpcomingRun))
		return &Outcome{Result: AlreadyExists, Name: existing[0].Name, UpcomingRun: existing[0].UpcomingRun}, nil
	}

	if err := m.client.CreateSchedule(ctx, name, backupapi.NewSchedulePayload(name, expr)); err != nil {
		return nil, fmt.Errorf("create schedule %q: %w", name, err)
	}
	m.logger.Info("schedule created", zap.String("name", name), zap.String("cron", expr))
	return &Outcome{Result: Created, Name: name, Cron: expr}, nil
}

// Delete removes the schedule called name. Deleting when there is no schedule,
// or when the existing one has another name, is not an error.
func (m *Manager) Delete(ctx context.Context, name string) (*Outcome, error) {
	existing, err := m.client.GetSchedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	if len(existing) == 0 {
		return &Outcome{Result: NothingToDelete}, nil
	}
	if existing[0].Name != name {
		m.logger.Info("schedule name mismatch", zap.String("want", name), zap.String("found", existing[0].Name))
		return &Outcome{Result: NameMismatch, Name: name}, nil
	}

	if err := m.client.DeleteSchedule(ctx, name); err != nil {
		return nil, fmt.Errorf("delete schedule %q: %w", name, err)
	}
	m.logger.Info("schedule deleted", zap.String("name", name))
	return &Outcome{Result: Deleted, Name: name}, nil
}

// dayNumbers is the appliance's weekday numbering.
var dayNumbers = map[time.Weekday]int{
	time.Sunday:    0,
	time.Monday:    1,
	time.Tuesday:   2,
	time.Wednesday: 3,
	time.Thursday:  4,
	time.Friday:    5,
	time.Saturday:  6,
}

// BuildCron renders the appliance cron expression for days at at.
//
// The appliance fires one hour after the hour it is given, so the submitted
// hour is one less than requested. A requested hour of 00 becomes 23 on the
// previous weekday.
func BuildCron(days []time.Weekday, at schedule.TimeOfDay) (string, error) {
	if len(days) == 0 {
		return "", fmt.Errorf("%w: no day given", schedule.ErrInvalidSpec)
	}
	if err := at.Validate(); err != nil {
		return "", err
	}

	hour := at.Hour - 1
	shift := 0
	if hour < 0 {
		hour = 23
		shift = 6
	}

	seen := make(map[int]bool, len(days))
	nums := make([]int, 0, len(days))
	for _, d := range days {
		n, ok := dayNumbers[d]
		if !ok {
			return "", fmt.Errorf("%w: weekday %d out of range", schedule.ErrInvalidSpec, int(d))
		}
		n = (n + shift) % 7
		if !seen[n] {
			seen[n] = true
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)

	fields := make([]string, len(nums))
	for i, n := range nums {
		fields[i] = strconv.Itoa(n)
	}
	expr := fmt.Sprintf("%d %d * * %s", at.Minute, hour, strings.Join(fields, ","))
	if _, err := cron.ParseStandard(expr); err != nil {
		return "", fmt.Errorf("%w: %s: %v", schedule.ErrInvalidSpec, expr, err)
	}
	return expr, nil
}
