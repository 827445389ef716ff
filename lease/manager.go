package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrLockHeld signals another holder owns a non-expired lease. Expected
	// under contention; callers skip rather than retry.
	ErrLockHeld = errors.New("lease: lock held by another holder")
	// ErrNotFound is returned when no lease row exists for the task.
	ErrNotFound = errors.New("lease: not found")
)

// Manager performs atomic lease operations against the task_locks table.
// Mutual exclusion rests entirely on the database's conditional-write
// guarantee; no coordination service is involved. All expiry comparisons
// use the database clock so worker hosts never compare their own clocks.
type Manager struct {
	pool *pgxpool.Pool
}

func NewManager(pool *pgxpool.Pool) *Manager {
	return &Manager{pool: pool}
}

// Acquire attempts to take the lease for taskName in a single conditional
// write: the insert wins if no row exists, or atomically replaces a row
// whose expiry has passed. Exactly one concurrent caller succeeds; the
// rest get ErrLockHeld immediately. Never blocks, never retries.
func (m *Manager) Acquire(ctx context.Context, taskName, holderID string, ttl time.Duration) (Handle, error) {
	if taskName == "" {
		return Handle{}, fmt.Errorf("lease: task name required")
	}
	if holderID == "" {
		return Handle{}, fmt.Errorf("lease: holder id required")
	}
	if ttl <= 0 {
		return Handle{}, fmt.Errorf("lease: ttl must be positive, got %s", ttl)
	}

	// xmax <> 0 distinguishes an expiry-driven reclaim (updated row) from
	// a fresh insert.
	const acquireSQL = `
        INSERT INTO task_locks (task_name, holder_id, acquired_at, expires_at)
        VALUES ($1, $2, now(), now() + make_interval(secs => $3))
        ON CONFLICT (task_name) DO UPDATE
        SET holder_id   = EXCLUDED.holder_id,
            acquired_at = EXCLUDED.acquired_at,
            expires_at  = EXCLUDED.expires_at
        WHERE task_locks.expires_at <= now()
        RETURNING expires_at, (xmax <> 0)
    `

	var (
		expiresAt time.Time
		reclaimed bool
	)
	err := m.pool.QueryRow(ctx, acquireSQL, taskName, holderID, ttl.Seconds()).Scan(&expiresAt, &reclaimed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The conflict target matched a live lease; the conditional
			// update declined to fire.
			return Handle{}, ErrLockHeld
		}
		return Handle{}, fmt.Errorf("lease: acquire %s: %w", taskName, err)
	}

	return Handle{
		TaskName:  taskName,
		HolderID:  holderID,
		ExpiresAt: expiresAt,
		Reclaimed: reclaimed,
	}, nil
}

// Release deletes the lease row only while the handle still owns it.
// Idempotent: releasing twice, or releasing a handle superseded by a
// later reclaim, is a no-op.
func (m *Manager) Release(ctx context.Context, handle Handle) error {
	_, err := m.pool.Exec(ctx,
		`DELETE FROM task_locks WHERE task_name = $1 AND holder_id = $2`,
		handle.TaskName, handle.HolderID)
	if err != nil {
		return fmt.Errorf("lease: release %s: %w", handle.TaskName, err)
	}
	return nil
}

// ForceRelease unconditionally deletes the lease row for taskName. This is
// an operator escape hatch: unsafe while a legitimate holder is mid-run,
// since the next acquire will overlap it.
func (m *Manager) ForceRelease(ctx context.Context, taskName string) error {
	_, err := m.pool.Exec(ctx, `DELETE FROM task_locks WHERE task_name = $1`, taskName)
	if err != nil {
		return fmt.Errorf("lease: force release %s: %w", taskName, err)
	}
	return nil
}

// Get reads the current lease row for operator visibility.
func (m *Manager) Get(ctx context.Context, taskName string) (Lease, error) {
	const query = `
        SELECT task_name, holder_id, acquired_at, expires_at
        FROM task_locks
        WHERE task_name = $1
    `

	var l Lease
	err := m.pool.QueryRow(ctx, query, taskName).Scan(&l.TaskName, &l.HolderID, &l.AcquiredAt, &l.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lease{}, ErrNotFound
		}
		return Lease{}, fmt.Errorf("lease: get %s: %w", taskName, err)
	}
	return l, nil
}
