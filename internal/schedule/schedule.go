// Package schedule triggers the daily run on a cron expression.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"gospeldiary/internal/logger"
)

// Job is one scheduled run. now is the trigger time in the scheduler's location.
type Job func(ctx context.Context, now time.Time) error

var parser = cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor)

// Scheduler runs a Job on a five-field cron expression in a fixed timezone.
type Scheduler struct {
	spec     string
	schedule cronlib.Schedule
	location *time.Location
	log      *slog.Logger
}

// Parse validates a five-field cron expression (or descriptor such as @daily).
func Parse(spec string) (cronlib.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("cron expression is empty")
	}
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return sched, nil
}

// New creates a Scheduler. A nil location means UTC.
func New(spec string, location *time.Location, log *slog.Logger) (*Scheduler, error) {
	sched, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = logger.Get()
	}
	return &Scheduler{
		spec:     strings.TrimSpace(spec),
		schedule: sched,
		location: location,
		log:      log.With("component", "schedule", "spec", strings.TrimSpace(spec), "timezone", location.String()),
	}, nil
}

// Next returns the first activation strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	return s.schedule.Next(now.In(s.location))
}

// Run blocks until ctx is cancelled, firing job on every activation. Runs
// never overlap; an activation that arrives while a run is active is skipped.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	cronLog := cronLogger{log: s.log}
	c := cronlib.New(
		cronlib.WithLocation(s.location),
		cronlib.WithParser(parser),
		cronlib.WithLogger(cronLog),
		cronlib.WithChain(cronlib.Recover(cronLog), cronlib.SkipIfStillRunning(cronLog)),
	)

	c.Schedule(s.schedule, cronlib.FuncJob(func() {
		s.fire(ctx, job)
	}))

	s.log.Info("Scheduler started", "next_run", s.Next(time.Now()))
	c.Start()

	<-ctx.Done()
	s.log.Info("Scheduler stopping")
	<-c.Stop().Done()

	return nil
}

func (s *Scheduler) fire(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	now := time.Now().In(s.location)
	start := time.Now()

	s.log.Info("Scheduled run starting", "trigger", now)
	if err := job(ctx, now); err != nil {
		s.log.Error("Scheduled run failed", "error", err, "duration", time.Since(start))
	} else {
		s.log.Info("Scheduled run finished", "duration", time.Since(start))
	}
	s.log.Info("Next run", "at", s.Next(time.Now()))
}

// cronLogger adapts slog to the cron library's logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
