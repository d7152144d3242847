// Package schedule runs the weekly job on a cron expression.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	appLog "weeklybrief/internal/log"
)

// Job is one scheduled run.
type Job func(ctx context.Context) error

// Scheduler fires a single Job on a cron schedule.
type Scheduler struct {
	spec  string
	sched cron.Schedule
	loc   *time.Location
	job   Job

	running atomic.Bool
	runs    atomic.Int64
}

// New parses spec (standard 5-field cron or a descriptor such as
// "@weekly") evaluated in loc.
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("schedule: nil job")
	}
	if loc == nil {
		loc = time.Local
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Scheduler{spec: spec, sched: sched, loc: loc, job: job}, nil
}

// Next returns the first fire time after t, in the scheduler's location.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.sched.Next(t.In(s.loc))
}

// Runs reports how many invocations have completed.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// Run blocks until ctx is cancelled, firing the job on schedule. A tick
// that arrives while the previous run is still going is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.loc))
	c.Schedule(s.sched, cron.FuncJob(func() { s.fire(ctx) }))

	c.Start()
	appLog.Info("scheduler started", "schedule", s.spec, "timezone", s.loc.String(), "next", s.Next(time.Now()).Format(time.RFC3339))

	<-ctx.Done()
	// Wait for an in-flight run to observe the cancellation.
	<-c.Stop().Done()
	appLog.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) fire(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		appLog.Warn("previous run still in progress; skipping tick")
		return
	}
	defer s.running.Store(false)

	started := time.Now()
	if err := s.job(ctx); err != nil {
		appLog.Error("scheduled run failed", err, "took", time.Since(started).Round(time.Millisecond))
	} else {
		appLog.Info("scheduled run finished", "took", time.Since(started).Round(time.Millisecond))
	}
	s.runs.Add(1)
	appLog.Info("next scheduled run", "at", s.Next(time.Now()).Format(time.RFC3339))
}
