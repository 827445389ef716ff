package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns invariant queries that must yield zero rows at any point
// during or after a stress run.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_lease_per_task",
			SQL: `SELECT task_name, COUNT(*) FROM task_locks
                  GROUP BY task_name HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_delivery_replay_dedup",
			SQL: `SELECT run_id, recipient, COUNT(*) FROM email_logs
                  GROUP BY run_id, recipient HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_failure_has_detail",
			SQL: `SELECT id FROM email_logs
                  WHERE success = FALSE
                    AND (error_message IS NULL OR error_message = '')`,
		},
		{
			Name: "O4_dry_run_always_success",
			SQL:  `SELECT id FROM email_logs WHERE dry_run AND NOT success`,
		},
		{
			Name: "O5_lease_expiry_after_acquire",
			SQL:  `SELECT task_name FROM task_locks WHERE expires_at <= acquired_at`,
		},
	}
}

// Check runs every oracle and returns an error naming the first that
// produced rows.
func Check(ctx context.Context, pool *pgxpool.Pool) error {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return fmt.Errorf("oracle %s query: %w", o.Name, err)
		}
		violated := rows.Next()
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("oracle %s rows: %w", o.Name, err)
		}
		if violated {
			return fmt.Errorf("oracle %s violated", o.Name)
		}
	}
	return nil
}
