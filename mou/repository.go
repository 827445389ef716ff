package mou

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read access to the agreement directory. The
// notification core never writes these tables.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActive returns agreements whose end date is on or after asOf,
// ordered by end date, each with its event sublist ordered by date.
func (r *Repository) ListActive(ctx context.Context, asOf time.Time) ([]Summary, error) {
	const query = `
        SELECT id, title, COALESCE(organization_name, ''), status, start_date, end_date,
               COALESCE(coordinator_name, ''), COALESCE(coordinator_email, ''),
               COALESCE(staff_coordinator_name, ''), COALESCE(staff_coordinator_email, '')
        FROM mous
        WHERE end_date >= $1
        ORDER BY end_date ASC, id ASC
    `

	rows, err := r.pool.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("mou: list active: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0, 16)
	for rows.Next() {
		var s Summary
		if err := rows.Scan(
			&s.ID,
			&s.Title,
			&s.Organization,
			&s.Status,
			&s.StartDate,
			&s.EndDate,
			&s.CoordinatorName,
			&s.CoordinatorEmail,
			&s.StaffCoordinatorName,
			&s.StaffCoordinatorEmail,
		); err != nil {
			return nil, fmt.Errorf("mou: scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mou: iterate summaries: %w", err)
	}

	for i := range summaries {
		events, err := r.listEvents(ctx, summaries[i].ID)
		if err != nil {
			return nil, err
		}
		summaries[i].Events = events
	}

	return summaries, nil
}

func (r *Repository) listEvents(ctx context.Context, mouID string) ([]Event, error) {
	const query = `
        SELECT title, date, status = 'Completed'
        FROM mou_events
        WHERE mou_id = $1
        ORDER BY date ASC, id ASC
    `

	rows, err := r.pool.Query(ctx, query, mouID)
	if err != nil {
		return nil, fmt.Errorf("mou: list events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, 8)
	for rows.Next() {
		var (
			e     Event
			title sql.NullString
		)
		if err := rows.Scan(&title, &e.Date, &e.Completed); err != nil {
			return nil, fmt.Errorf("mou: scan event: %w", err)
		}
		e.Title = title.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mou: iterate events: %w", err)
	}

	return events, nil
}
