package actors

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"mounotify/lease"
)

// Contender races for the task lease. On a win it raises the shared
// holder gauge, holds the lease briefly, and releases. The gauge going
// above one means two processes held the same lease at once, which is
// the one thing this suite exists to rule out.
func Contender(ctx context.Context, mgr *lease.Manager, taskName string, holders *atomic.Int64, wins *atomic.Int64, stop <-chan struct{}) error {
	holderID := lease.NewHolderID()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		handle, err := mgr.Acquire(ctx, taskName, holderID, 10*time.Second)
		if err != nil {
			// Transient connection loss from the chaos actor is expected;
			// contention and crashes both just mean "try again shortly".
			time.Sleep(time.Duration(5+rand.Intn(10)) * time.Millisecond)
			continue
		}

		if n := holders.Add(1); n > 1 {
			holders.Add(-1)
			return fmt.Errorf("mutual exclusion violated: %d concurrent holders", n)
		}
		wins.Add(1)
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
		holders.Add(-1)

		// A failed release leaves the row until its ttl elapses; the next
		// winner reclaims it.
		_ = mgr.Release(ctx, handle)
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
	}
}

// CrashedHolder acquires with a very short ttl and never releases,
// simulating a worker killed mid-run. Contenders must reclaim once the
// ttl elapses.
func CrashedHolder(ctx context.Context, mgr *lease.Manager, taskName string, stop <-chan struct{}) error {
	holderID := lease.NewHolderID()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_, _ = mgr.Acquire(ctx, taskName, holderID, 200*time.Millisecond)
		// Walk away without releasing.
		time.Sleep(time.Duration(300+rand.Intn(200)) * time.Millisecond)
	}
}

// StaleReleaser keeps a handle from an expired acquisition and replays
// Release with it long after the lease has been reclaimed. The current
// holder's row must survive.
func StaleReleaser(ctx context.Context, mgr *lease.Manager, taskName string, stop <-chan struct{}) error {
	holderID := lease.NewHolderID()
	var stale *lease.Handle
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		if stale != nil {
			_ = mgr.Release(ctx, *stale)
		}

		handle, err := mgr.Acquire(ctx, taskName+"_stale", holderID, 100*time.Millisecond)
		if err == nil {
			stale = &handle
		}
		time.Sleep(time.Duration(150+rand.Intn(150)) * time.Millisecond)
	}
}

// Operator occasionally force-releases the lease, as a human would when a
// run looks stuck.
func Operator(ctx context.Context, mgr *lease.Manager, taskName string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		if rand.Intn(10) == 0 {
			_ = mgr.ForceRelease(ctx, taskName+"_stale")
		}
		time.Sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
	}
}
