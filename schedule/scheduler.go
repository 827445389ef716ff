// Package schedule provides an optional built-in trigger for deployments
// without an external scheduler. Each activation is an ordinary job run;
// the lease still arbitrates if several schedulers fire at once.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"mounotify/job"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Runner is the job executed on each activation.
type Runner interface {
	Run(ctx context.Context, opts job.Options) (job.Summary, error)
}

// Scheduler fires the notification job on a cron schedule.
type Scheduler struct {
	runner Runner
	opts   job.Options
	sched  cronlib.Schedule
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New parses expr and builds a scheduler around the runner.
func New(runner Runner, expr string, opts job.Options, logger *slog.Logger) (*Scheduler, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse %q: %w", expr, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner: runner,
		opts:   opts,
		sched:  sched,
		logger: logger,
	}, nil
}

// Start begins the scheduling loop in a background goroutine. It respects
// the provided context for shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("scheduler started", "next_run", s.sched.Next(time.Now()))
}

// Stop cancels the loop and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		next := s.sched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	summary, err := s.runner.Run(ctx, s.opts)
	if err != nil {
		s.logger.Error("scheduled run failed", "error", err)
		return
	}
	if !summary.Executed() {
		s.logger.Info("scheduled run skipped", "reason", summary.SkipReason)
		return
	}
	s.logger.Info("scheduled run finished",
		"run_id", summary.RunID,
		"attempted", summary.Attempted,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
}
