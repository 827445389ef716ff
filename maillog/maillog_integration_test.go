package maillog

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestMaillog_Integration verifies the append-only write path against a
// real PostgreSQL, including the (run_id, recipient) replay guardrail.
func TestMaillog_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'email_logs')`).Scan(&exists); err != nil {
		t.Fatalf("check email_logs table: %v", err)
	}
	if !exists {
		t.Skip("database schema missing; apply migrations/*.sql first")
	}

	log := NewLog(pool)
	runID := fmt.Sprintf("itest-run-%d", time.Now().UnixNano())
	taskName := "itest_maillog"

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_, _ = pool.Exec(ctx2, `DELETE FROM email_logs WHERE run_id = $1`, runID)
	})

	entry := Record{
		TaskName:  taskName,
		RunID:     runID,
		Recipient: "coordinator@example.edu",
		Subject:   "Monthly MOU Update: Integration",
		Success:   true,
	}
	if err := log.Record(ctx, entry); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Replaying the same (run, recipient) must not double-count.
	replay := entry
	replay.Success = false
	replay.ErrorDetail = "should never land"
	if err := log.Record(ctx, replay); err != nil {
		t.Fatalf("replay record: %v", err)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM email_logs WHERE run_id = $1`, runID).Scan(&count); err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected replay to dedupe, got %d rows", count)
	}

	failed := Record{
		TaskName:    taskName,
		RunID:       runID,
		Recipient:   "staff@example.edu",
		Subject:     "Monthly MOU Update: Integration",
		Success:     false,
		ErrorDetail: "smtp: refused",
	}
	if err := log.Record(ctx, failed); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	success := true
	records, err := log.List(ctx, Filters{TaskName: taskName, Success: &success})
	if err != nil {
		t.Fatalf("list successes: %v", err)
	}
	for _, r := range records {
		if !r.Success {
			t.Fatalf("success filter returned failed record %+v", r)
		}
	}

	all, err := log.List(ctx, Filters{TaskName: taskName})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records for task, got %d", len(all))
	}
	for _, r := range all {
		if r.Recipient == "staff@example.edu" && r.ErrorDetail != "smtp: refused" {
			t.Fatalf("expected error detail preserved, got %q", r.ErrorDetail)
		}
	}
}

func TestRecordValidation(t *testing.T) {
	log := NewLog(nil)
	if err := log.Record(context.Background(), Record{Recipient: "a@example.com"}); err == nil {
		t.Errorf("expected error for missing run id")
	}
	if err := log.Record(context.Background(), Record{RunID: "r1"}); err == nil {
		t.Errorf("expected error for missing recipient")
	}
}
