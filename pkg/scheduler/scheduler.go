// Package scheduler runs a job on a daily or weekly trigger from a single
// polling loop.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/schedule"
)

const defaultTick = time.Second

// Job is the unit of work fired by the Scheduler. It runs to completion
// before the next tick is evaluated.
type Job func() error

// Scheduler fires a Job whenever its trigger comes due and then re-arms for
// the next occurrence. Run and Tick must be called from one goroutine; Status
// may be called from any.
type Scheduler struct {
	spec     schedule.Spec
	schedule cron.Schedule
	job      Job

	tick     time.Duration
	location *time.Location
	now      func() time.Time
	sleep    func(time.Duration)

	mu      sync.Mutex
	next    time.Time
	runs    int
	lastRun time.Time
	lastErr error

	logger *zap.Logger
}

// Status is a snapshot of the scheduler.
type Status struct {
	Schedule  string    `json:"schedule"`
	NextRun   time.Time `json:"next_run"`
	Runs      int       `json:"runs"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Option configures a Scheduler.
type Option func(s *Scheduler)

// WithLocation evaluates the trigger in loc instead of the local time zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

// WithTick changes the polling interval.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		s.tick = d
	}
}

// WithClock replaces the wall clock and sleep function.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(s *Scheduler) {
		s.now = now
		s.sleep = sleep
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New arms a Scheduler for spec. The first run is the first occurrence after
// the current time.
func New(spec schedule.Spec, job Job, opts ...Option) (*Scheduler, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("scheduler: nil job")
	}
	sched, err := cron.ParseStandard(spec.CronExpr())
	if err != nil {
		return nil, fmt.Errorf("scheduler: %s: %w", spec, err)
	}

	s := &Scheduler{
		spec:     spec,
		schedule: sched,
		job:      job,
		tick:     defaultTick,
		location: time.Local,
		now:      time.Now,
		sleep:    time.Sleep,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.next = s.nextAfter(s.now())
	return s, nil
}

// Next is the time the job fires next.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Runs is the number of times the job has fired.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// LastError is the error returned by the latest run, if any.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Schedule: s.spec.String(),
		NextRun:  s.next,
		Runs:     s.runs,
		LastRun:  s.lastRun,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Run polls forever. It only returns when the process exits.
func (s *Scheduler) Run() {
	s.logger.Info("scheduler armed",
		zap.Stringer("schedule", s.spec),
		zap.Time("next_run", s.Next()))
	for {
		s.Tick(s.now())
		s.sleep(s.tick)
	}
}

// Tick runs the job if it is due at now and reports whether it ran.
func (s *Scheduler) Tick(now time.Time) bool {
	due := s.Next()
	if now.Before(due) {
		return false
	}

	s.logger.Info("running scheduled job", zap.Time("due", due))
	err := s.runJob()
	if err != nil {
		s.logger.Error("scheduled job failed", zap.Error(err))
	}
	next := s.nextAfter(s.now())

	s.mu.Lock()
	s.runs++
	s.lastRun = now
	s.lastErr = err
	s.next = next
	s.mu.Unlock()

	s.logger.Info("scheduler re-armed", zap.Time("next_run", next))
	return true
}

// runJob converts a panicking job into an error so the loop survives it.
func (s *Scheduler) runJob() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduled job panicked: %v", r)
		}
	}()
	return s.job()
}

func (s *Scheduler) nextAfter(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.location))
}
