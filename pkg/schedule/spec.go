// Package schedule describes when a recurring job runs.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSpec is returned for schedules that cannot be armed.
var ErrInvalidSpec = errors.New("invalid schedule")

// Interval is how often a job repeats.
type Interval int

const (
	Daily Interval = iota + 1
	Weekly
)

func (i Interval) String() string {
	switch i {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	}
	return fmt.Sprintf("interval(%d)", int(i))
}

// ParseInterval accepts "daily" or "weekly", case insensitive.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	}
	return 0, fmt.Errorf("%w: unknown interval %q, want daily or weekly", ErrInvalidSpec, s)
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// EveryDay is the day argument that selects all seven weekdays.
const EveryDay = "everyday"

// ParseWeekday parses a full English weekday name.
func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidSpec, s)
	}
	return d, nil
}

// ParseDays parses a list of weekday names. "everyday" anywhere in the list
// selects the whole week. The result is ordered Sunday first without repeats.
func ParseDays(names []string) ([]time.Weekday, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no day given", ErrInvalidSpec)
	}
	var set [7]bool
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), EveryDay) {
			return AllDays(), nil
		}
		d, err := ParseWeekday(n)
		if err != nil {
			return nil, err
		}
		set[d] = true
	}
	days := make([]time.Weekday, 0, 7)
	for d, ok := range set {
		if ok {
			days = append(days, time.Weekday(d))
		}
	}
	return days, nil
}

// AllDays returns Sunday through Saturday.
func AllDays() []time.Weekday {
	return []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
}

// TimeOfDay is a wall clock time, 24h.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSpec, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSpec, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSpec, s)
	}
	t := TimeOfDay{Hour: h, Minute: m}
	return t, t.Validate()
}

func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("%w: time %02d:%02d out of range", ErrInvalidSpec, t.Hour, t.Minute)
	}
	return nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Spec is a recurring trigger: every day, or once a week on Weekday, at At.
type Spec struct {
	Interval Interval
	Weekday  time.Weekday
	At       TimeOfDay
}

// DailyAt returns a Spec firing every day at t.
func DailyAt(t TimeOfDay) Spec {
	return Spec{Interval: Daily, At: t}
}

// WeeklyAt returns a Spec firing every week on day at t.
func WeeklyAt(day time.Weekday, t TimeOfDay) Spec {
	return Spec{Interval: Weekly, Weekday: day, At: t}
}

// Parse builds a Spec from its command line form. day is ignored for daily
// schedules.
func Parse(interval, day, at string) (Spec, error) {
	iv, err := ParseInterval(interval)
	if err != nil {
		return Spec{}, err
	}
	t, err := ParseTimeOfDay(at)
	if err != nil {
		return Spec{}, err
	}
	if iv == Daily {
		return DailyAt(t), nil
	}
	d, err := ParseWeekday(day)
	if err != nil {
		return Spec{}, err
	}
	return WeeklyAt(d, t), nil
}

func (s Spec) Validate() error {
	switch s.Interval {
	case Daily:
	case Weekly:
		if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidSpec, int(s.Weekday))
		}
	default:
		return fmt.Errorf("%w: no interval selected", ErrInvalidSpec)
	}
	return s.At.Validate()
}

// Days lists the weekdays the Spec fires on.
func (s Spec) Days() []time.Weekday {
	if s.Interval == Weekly {
		return []time.Weekday{s.Weekday}
	}
	return AllDays()
}

// CronExpr renders the Spec as a standard five field cron expression.
func (s Spec) CronExpr() string {
	dow := "*"
	if s.Interval == Weekly {
		dow = strconv.Itoa(int(s.Weekday))
	}
	return fmt.Sprintf("%d %d * * %s", s.At.Minute, s.At.Hour, dow)
}

func (s Spec) String() string {
	if s.Interval == Weekly {
		return fmt.Sprintf("%ss at %s", strings.ToLower(s.Weekday.String()), s.At)
	}
	return fmt.Sprintf("daily at %s", s.At)
}
