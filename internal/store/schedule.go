package store

import (
	"context"
	"fmt"

	"github.com/quadrant-tasks/quadrant/internal/schema"
)

// UpsertSchedule inserts or updates a scheduled-task template.
func (s *Store) UpsertSchedule(sched *schema.ScheduledTask) error {
	return s.UpsertScheduleContext(context.Background(), sched)
}

// UpsertScheduleContext upserts a schedule with context support.
func (s *Store) UpsertScheduleContext(ctx context.Context, sched *schema.ScheduledTask) error {
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (
			id, title, priority, notes, due_date, frequency,
			week_day, month_day, quarter_day, year_month, year_day,
			next_run_at, active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			priority = excluded.priority,
			notes = excluded.notes,
			due_date = excluded.due_date,
			frequency = excluded.frequency,
			week_day = excluded.week_day,
			month_day = excluded.month_day,
			quarter_day = excluded.quarter_day,
			year_month = excluded.year_month,
			year_day = excluded.year_day,
			next_run_at = excluded.next_run_at,
			active = excluded.active`,
		sched.ID, sched.Title, sched.Priority, sched.Notes, sched.DueDate,
		string(sched.Frequency), sched.WeekDay, sched.MonthDay, sched.QuarterDay,
		sched.YearMonth, sched.YearDay, sched.NextRunAt, sched.Active, sched.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert schedule %s: %w", sched.ID, err)
	}
	return nil
}

// UpdateScheduleNextRun advances a schedule's next firing time after it
// spawns a task.
func (s *Store) UpdateScheduleNextRun(id, nextRunAt string) error {
	return s.UpdateScheduleNextRunContext(context.Background(), id, nextRunAt)
}

// UpdateScheduleNextRunContext advances next_run_at with context support.
func (s *Store) UpdateScheduleNextRunContext(ctx context.Context, id, nextRunAt string) error {
	_, err := s.conn.ExecContext(ctx,
		"UPDATE scheduled_tasks SET next_run_at = ? WHERE id = ?",
		nextRunAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule %s: %w", id, err)
	}
	return nil
}

// ListSchedules returns scheduled-task templates ordered by next_run_at.
// With activeOnly set, inactive templates are skipped; with dueBefore
// non-empty, only templates due at or before that timestamp are returned.
func (s *Store) ListSchedules(activeOnly bool, dueBefore string) ([]*schema.ScheduledTask, error) {
	return s.ListSchedulesContext(context.Background(), activeOnly, dueBefore)
}

// ListSchedulesContext lists schedules with context support.
func (s *Store) ListSchedulesContext(ctx context.Context, activeOnly bool, dueBefore string) ([]*schema.ScheduledTask, error) {
	query := `
		SELECT id, title, priority, notes, due_date, frequency,
		       week_day, month_day, quarter_day, year_month, year_day,
		       next_run_at, active, created_at
		FROM scheduled_tasks`

	var conditions []string
	var args []interface{}
	if activeOnly {
		conditions = append(conditions, "active = 1")
	}
	if dueBefore != "" {
		conditions = append(conditions, "next_run_at <= ?")
		args = append(args, dueBefore)
	}
	for i, c := range conditions {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY next_run_at ASC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*schema.ScheduledTask
	for rows.Next() {
		var sched schema.ScheduledTask
		var freq string
		err := rows.Scan(
			&sched.ID, &sched.Title, &sched.Priority, &sched.Notes, &sched.DueDate,
			&freq, &sched.WeekDay, &sched.MonthDay, &sched.QuarterDay,
			&sched.YearMonth, &sched.YearDay, &sched.NextRunAt, &sched.Active,
			&sched.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		sched.Frequency = schema.Frequency(freq)
		schedules = append(schedules, &sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}
	return schedules, nil
}

// DeleteSchedule removes a scheduled-task template. Returns nil if it
// doesn't exist (idempotent); templates are the one entity that is
// physically deleted, since they carry no audit trail.
func (s *Store) DeleteSchedule(id string) error {
	return s.DeleteScheduleContext(context.Background(), id)
}

// DeleteScheduleContext removes a schedule with context support.
func (s *Store) DeleteScheduleContext(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx, "DELETE FROM scheduled_tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}
	return nil
}
