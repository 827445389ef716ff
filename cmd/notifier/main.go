// Command notifier runs the monthly MOU reminder job. It is intended to
// be invoked once per period by an external scheduler (cron, systemd
// timers, a container job); the database lease guarantees a single
// execution even when several workers are triggered at once.
//
//	notifier --dry-run
//	notifier --lock-timeout 30
//	notifier --schedule "0 9 1 * *"   # built-in trigger, monthly at 09:00
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mounotify/config"
	"mounotify/db"
	"mounotify/job"
	"mounotify/lease"
	"mounotify/maillog"
	"mounotify/mailer"
	"mounotify/mou"
	"mounotify/schedule"
)

func main() {
	var (
		flConfig      = flag.String("config", "", "path to YAML config file (optional)")
		flDryRun      = flag.Bool("dry-run", false, "simulate email sending without actually sending")
		flForce       = flag.Bool("force", false, "force execution even if lock exists (use with caution)")
		flLockTimeout = flag.Int("lock-timeout", 0, "lock timeout in minutes (default 30)")
		flSchedule    = flag.String("schedule", "", "cron expression for the built-in trigger; empty runs once")
		flStatus      = flag.Bool("status", false, "print the current lock state and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*flConfig)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *flLockTimeout > 0 {
		cfg.LockTimeoutMinutes = *flLockTimeout
	}
	if *flSchedule != "" {
		cfg.Schedule = *flSchedule
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	locker := lease.NewManager(pool)

	if *flStatus {
		printStatus(ctx, locker, cfg.TaskName)
		return
	}

	var transport job.Transport = mailer.NewSMTP(cfg.SMTP)
	if *flDryRun && cfg.SMTP.Host == "" {
		transport = mailer.Nop{}
	}

	runner := job.NewRunner(locker, mou.NewRepository(pool), transport, maillog.NewLog(pool)).
		WithLogger(logger).
		WithTaskName(cfg.TaskName)

	opts := job.Options{
		DryRun:  *flDryRun,
		LockTTL: time.Duration(cfg.LockTimeoutMinutes) * time.Minute,
		Force:   *flForce,
	}

	if opts.DryRun {
		logger.Warn("dry run mode, no emails will be sent")
	}

	if cfg.Schedule != "" {
		runScheduled(ctx, runner, cfg.Schedule, opts, logger)
		return
	}

	summary, err := runner.Run(ctx, opts)
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
	if !summary.Executed() {
		// A lock-held skip is a normal outcome; the holder covers this period.
		return
	}
	fmt.Printf("run %s: attempted=%d sent=%d failed=%d skipped=%d\n",
		summary.RunID, summary.Attempted, summary.Sent, summary.Failed, summary.Skipped)
}

func runScheduled(ctx context.Context, runner *job.Runner, expr string, opts job.Options, logger *slog.Logger) {
	sched, err := schedule.New(runner, expr, opts, logger)
	if err != nil {
		log.Fatalf("build scheduler: %v", err)
	}
	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop()
}

func printStatus(ctx context.Context, locker *lease.Manager, taskName string) {
	current, err := locker.Get(ctx, taskName)
	if err != nil {
		if errors.Is(err, lease.ErrNotFound) {
			fmt.Printf("task %q is not locked\n", taskName)
			return
		}
		log.Fatalf("read lock state: %v", err)
	}
	fmt.Printf("task %q locked by %s since %s, expires %s\n",
		current.TaskName, current.HolderID,
		current.AcquiredAt.Format(time.RFC3339), current.ExpiresAt.Format(time.RFC3339))
}
