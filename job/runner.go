// Package job orchestrates one run of the monthly notification task:
// lease acquisition, recipient enumeration, content building, delivery,
// audit logging, and release.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mounotify/lease"
	"mounotify/maillog"
	"mounotify/mou"
	"mounotify/notify"
)

// DefaultTaskName keys the lease row and the audit trail.
const DefaultTaskName = "send_monthly_mou_emails"

// SkipReasonLockHeld marks a run that yielded to a concurrent holder.
const SkipReasonLockHeld = "lock_held"

// Locker is the mutual-exclusion collaborator.
type Locker interface {
	Acquire(ctx context.Context, taskName, holderID string, ttl time.Duration) (lease.Handle, error)
	Release(ctx context.Context, handle lease.Handle) error
	ForceRelease(ctx context.Context, taskName string) error
}

// Directory lists agreements still in force as of a date. Read-only.
type Directory interface {
	ListActive(ctx context.Context, asOf time.Time) ([]mou.Summary, error)
}

// Transport delivers one message to a recipient list. No partial-success
// semantics: an error means nothing was delivered.
type Transport interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// DeliveryLog appends audit records for each recipient.
type DeliveryLog interface {
	Record(ctx context.Context, entry maillog.Record) error
}

// Options controls a single run.
type Options struct {
	// DryRun walks the full selection and build pipeline but skips the
	// transport call; records are written marked dry-run.
	DryRun bool
	// LockTTL bounds how long a crashed holder blocks the next run.
	LockTTL time.Duration
	// Force removes any existing lease before acquiring. Unsafe while a
	// legitimate holder is mid-run.
	Force bool
}

// Summary reports the outcome counts of one run.
type Summary struct {
	RunID      string
	Attempted  int
	Sent       int
	Failed     int
	Skipped    int
	SkipReason string
	Reclaimed  bool
}

// Executed reports whether the run held the lease and processed
// agreements, as opposed to yielding to a concurrent holder.
func (s Summary) Executed() bool {
	return s.SkipReason == ""
}

// Runner executes the notification job. One Run corresponds to one lease
// acquisition; concurrent Runs from any number of processes resolve to a
// single executor.
type Runner struct {
	locker      Locker
	directory   Directory
	transport   Transport
	deliveries  DeliveryLog
	logger      *slog.Logger
	taskName    string
	now         func() time.Time
	newRunID    func() string
	newHolderID func() string
}

func NewRunner(locker Locker, directory Directory, transport Transport, deliveries DeliveryLog) *Runner {
	return &Runner{
		locker:      locker,
		directory:   directory,
		transport:   transport,
		deliveries:  deliveries,
		logger:      slog.Default(),
		taskName:    DefaultTaskName,
		now:         time.Now,
		newRunID:    func() string { return uuid.NewString() },
		newHolderID: lease.NewHolderID,
	}
}

func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	if logger != nil {
		r.logger = logger
	}
	return r
}

func (r *Runner) WithTaskName(name string) *Runner {
	if name != "" {
		r.taskName = name
	}
	return r
}

// Run performs one execution. A lock-held skip is a graceful outcome and
// returns a nil error; only lease-store or directory failures return one.
// The lease is released on every exit path after a successful acquire.
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}

	summary := Summary{RunID: r.newRunID()}
	holderID := r.newHolderID()
	logger := r.logger.With("task", r.taskName, "run_id", summary.RunID, "holder", holderID)

	if opts.Force {
		logger.Warn("force mode: removing existing lock")
		if err := r.locker.ForceRelease(ctx, r.taskName); err != nil {
			return summary, fmt.Errorf("job: force release: %w", err)
		}
	}

	handle, err := r.locker.Acquire(ctx, r.taskName, holderID, opts.LockTTL)
	if err != nil {
		if errors.Is(err, lease.ErrLockHeld) {
			summary.SkipReason = SkipReasonLockHeld
			logger.Info("task already locked, skipping run")
			return summary, nil
		}
		return summary, fmt.Errorf("job: acquire lock: %w", err)
	}
	summary.Reclaimed = handle.Reclaimed
	if handle.Reclaimed {
		logger.Info("reclaimed expired lock from previous holder")
	}
	logger.Info("lock acquired", "expires_at", handle.ExpiresAt)

	defer func() {
		if err := r.locker.Release(ctx, handle); err != nil {
			logger.Error("release lock", "error", err)
			return
		}
		logger.Info("lock released")
	}()

	asOf := r.now()
	agreements, err := r.directory.ListActive(ctx, asOf)
	if err != nil {
		return summary, fmt.Errorf("job: list active agreements: %w", err)
	}
	logger.Info("active agreements found", "count", len(agreements), "dry_run", opts.DryRun)

	for _, agreement := range agreements {
		recipients := notify.Recipients(agreement)
		if len(recipients) == 0 {
			summary.Skipped++
			logger.Warn("no coordinator addresses", "mou_id", agreement.ID, "title", agreement.Title)
			continue
		}

		summary.Attempted++
		if r.notifyAgreement(ctx, logger, agreement, recipients, asOf, summary.RunID, opts.DryRun) {
			summary.Sent++
		} else {
			summary.Failed++
		}
	}

	logger.Info("run complete",
		"attempted", summary.Attempted,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// notifyAgreement builds and delivers one agreement's update, then writes
// one audit record per recipient. Every failure is contained here so one
// agreement never aborts the remaining set.
func (r *Runner) notifyAgreement(ctx context.Context, logger *slog.Logger, agreement mou.Summary, recipients []string, asOf time.Time, runID string, dryRun bool) bool {
	content := notify.Build(agreement, asOf)

	var sendErr error
	if !dryRun {
		sendErr = r.send(ctx, recipients, content)
	}

	for _, recipient := range recipients {
		entry := maillog.Record{
			TaskName:  r.taskName,
			RunID:     runID,
			Recipient: recipient,
			Subject:   content.Subject,
			Success:   sendErr == nil,
			DryRun:    dryRun,
			MOUID:     agreement.ID,
		}
		if sendErr != nil {
			entry.ErrorDetail = sendErr.Error()
		}
		if err := r.deliveries.Record(ctx, entry); err != nil {
			logger.Error("record delivery", "mou_id", agreement.ID, "recipient", recipient, "error", err)
		}
	}

	if sendErr != nil {
		logger.Error("send failed", "mou_id", agreement.ID, "title", agreement.Title, "error", sendErr)
		return false
	}
	if dryRun {
		logger.Info("dry run, would send", "mou_id", agreement.ID, "recipients", recipients, "subject", content.Subject)
	} else {
		logger.Info("sent", "mou_id", agreement.ID, "title", agreement.Title, "recipients", len(recipients))
	}
	return true
}

// send calls the transport, converting a panic into an error so a
// misbehaving transport is isolated at agreement granularity.
func (r *Runner) send(ctx context.Context, recipients []string, content notify.Content) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job: transport panic: %v", p)
		}
	}()
	return r.transport.Send(ctx, recipients, content.Subject, content.Body)
}
