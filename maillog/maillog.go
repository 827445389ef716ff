// Package maillog is the append-only audit trail of delivery attempts.
package maillog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one delivery attempt for one recipient in one run. Immutable
// once written.
type Record struct {
	ID          int64
	TaskName    string
	RunID       string
	Recipient   string
	Subject     string
	Success     bool
	DryRun      bool
	ErrorDetail string
	MOUID       string
	SentAt      time.Time
}

// Filters narrows read-side queries. Zero values are ignored.
type Filters struct {
	TaskName string
	Success  *bool
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Log writes and reads email_logs. Writes are keyed by (run_id, recipient)
// so a manually replayed run never double-counts a delivery.
type Log struct {
	pool *pgxpool.Pool
}

func NewLog(pool *pgxpool.Pool) *Log {
	return &Log{pool: pool}
}

// Record appends one delivery attempt. A conflicting (run_id, recipient)
// pair is silently skipped.
func (l *Log) Record(ctx context.Context, entry Record) error {
	if entry.RunID == "" {
		return fmt.Errorf("maillog: run id required")
	}
	if entry.Recipient == "" {
		return fmt.Errorf("maillog: recipient required")
	}

	var errDetail any
	if entry.ErrorDetail != "" {
		errDetail = entry.ErrorDetail
	}
	var mouID any
	if entry.MOUID != "" {
		mouID = entry.MOUID
	}

	const insertSQL = `
        INSERT INTO email_logs (task_name, run_id, recipient, subject, success, dry_run, error_message, mou_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (run_id, recipient) DO NOTHING
    `

	_, err := l.pool.Exec(ctx, insertSQL,
		entry.TaskName,
		entry.RunID,
		entry.Recipient,
		entry.Subject,
		entry.Success,
		entry.DryRun,
		errDetail,
		mouID,
	)
	if err != nil {
		return fmt.Errorf("maillog: record delivery: %w", err)
	}
	return nil
}

// List returns recent delivery records, newest first. Out of the hot
// path; reads at the store's default consistency.
func (l *Log) List(ctx context.Context, filters Filters) ([]Record, error) {
	if filters.Limit <= 0 || filters.Limit > 500 {
		filters.Limit = 100
	}

	query := `
        SELECT id, task_name, run_id, recipient, subject, success, dry_run,
               COALESCE(error_message, ''), COALESCE(mou_id::text, ''), sent_at
        FROM email_logs
        WHERE 1=1
    `
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.TaskName != "" {
		query += " AND task_name = " + arg(filters.TaskName)
	}
	if filters.Success != nil {
		query += " AND success = " + arg(*filters.Success)
	}
	if !filters.Since.IsZero() {
		query += " AND sent_at >= " + arg(filters.Since)
	}
	if !filters.Until.IsZero() {
		query += " AND sent_at < " + arg(filters.Until)
	}
	query += " ORDER BY sent_at DESC LIMIT " + arg(filters.Limit)

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("maillog: list: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, filters.Limit)
	for rows.Next() {
		var (
			r      Record
			sentAt sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.TaskName, &r.RunID, &r.Recipient, &r.Subject, &r.Success, &r.DryRun, &r.ErrorDetail, &r.MOUID, &sentAt); err != nil {
			return nil, fmt.Errorf("maillog: scan record: %w", err)
		}
		r.SentAt = sentAt.Time
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("maillog: iterate records: %w", err)
	}

	return records, nil
}
