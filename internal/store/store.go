// Package store provides the durable SQLite layer beneath the write-back
// cache.
//
// The database runs embedded (ncruces/go-sqlite3) with WAL mode for
// concurrent reads. It holds four tables:
//   - tasks: one row per task, fixed lifecycle columns plus one column per
//     declared user field
//   - task_history: append-only per-field change log
//   - sync_log: audit rows for sync rounds
//   - scheduled_tasks: recurring task templates
//
// The application reads the tasks table exactly once, at startup, to
// populate the cache; after that the store is write-only for task state.
// History and sync-log reads always go to the store (after a flush).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quadrant-tasks/quadrant/internal/schema"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// fixedColumns are the task columns that exist regardless of the field
// schema, in their canonical order.
var fixedColumns = []string{
	"id", "color", "position_x", "position_y",
	"completed", "completed_date", "deleted",
	"created_at", "updated_at", "sync_status",
}

// Store wraps the SQLite connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path, creating the
// parent directory if needed. The caller MUST call Close when done.
//
// Failure here is fatal to the application: an unusable store makes the
// whole persistence engine meaningless, so unlike every later operation the
// error propagates.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return s, nil
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// InitSchema creates the tables and indexes if they don't exist, then makes
// sure a column exists for every declared user field. Idempotent.
func (s *Store) InitSchema(fieldNames []string) error {
	return s.InitSchemaContext(context.Background(), fieldNames)
}

// InitSchemaContext creates the schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context, fieldNames []string) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		color TEXT DEFAULT '` + schema.DefaultColor + `',
		position_x INTEGER DEFAULT 100,
		position_y INTEGER DEFAULT 100,
		completed INTEGER NOT NULL DEFAULT 0,
		completed_date TEXT DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT '',
		sync_status TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS task_history (
		task_id TEXT NOT NULL,
		field_name TEXT NOT NULL,
		field_value TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		PRIMARY KEY (task_id, field_name, timestamp)
	);

	CREATE TABLE IF NOT EXISTS sync_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		last_sync_at TEXT NOT NULL,
		sync_type TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS scheduled_tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		priority TEXT DEFAULT '',
		notes TEXT DEFAULT '',
		due_date TEXT DEFAULT '',
		frequency TEXT NOT NULL,
		week_day INTEGER DEFAULT 0,
		month_day INTEGER DEFAULT 0,
		quarter_day INTEGER DEFAULT 0,
		year_month INTEGER DEFAULT 0,
		year_day INTEGER DEFAULT 0,
		next_run_at TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed);
	CREATE INDEX IF NOT EXISTS idx_tasks_deleted ON tasks(deleted);
	CREATE INDEX IF NOT EXISTS idx_tasks_sync_status ON tasks(sync_status);
	CREATE INDEX IF NOT EXISTS idx_task_history_task_id ON task_history(task_id);
	CREATE INDEX IF NOT EXISTS idx_task_history_timestamp ON task_history(timestamp);
	CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_next_run ON scheduled_tasks(next_run_at);
	`

	if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s.ensureFieldColumns(ctx, fieldNames)
}

// ensureFieldColumns adds a TEXT column for any declared user field the
// tasks table doesn't have yet. Columns are never dropped; a field removed
// from the schema simply stops being written.
func (s *Store) ensureFieldColumns(ctx context.Context, fieldNames []string) error {
	existing, err := s.taskColumns(ctx)
	if err != nil {
		return err
	}

	for _, name := range fieldNames {
		if !validColumnName(name) {
			return fmt.Errorf("invalid field name %q", name)
		}
		if _, ok := existing[name]; ok {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE tasks ADD COLUMN %s TEXT DEFAULT ''", name)
		if _, err := s.conn.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("failed to add field column %s: %w", name, err)
		}
	}
	return nil
}

// taskColumns returns the current column set of the tasks table.
func (s *Store) taskColumns(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.conn.QueryContext(ctx, "PRAGMA table_info(tasks)")
	if err != nil {
		return nil, fmt.Errorf("failed to inspect tasks table: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notnull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

// validColumnName rejects field names that can't be used as bare SQL
// identifiers. Field names come from local configuration, but they are still
// interpolated into DDL and DML, so they are held to a strict charset.
func validColumnName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// LoadAllTasks reads every task row, including tombstones, for startup cache
// population. Columns outside the fixed set are returned as user fields.
func (s *Store) LoadAllTasks() ([]*schema.Task, error) {
	return s.LoadAllTasksContext(context.Background())
}

// LoadAllTasksContext reads all tasks with context support.
func (s *Store) LoadAllTasksContext(ctx context.Context) ([]*schema.Task, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT * FROM tasks")
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	fixed := make(map[string]struct{}, len(fixedColumns))
	for _, c := range fixedColumns {
		fixed[c] = struct{}{}
	}

	var tasks []*schema.Task
	for rows.Next() {
		task := &schema.Task{Fields: make(map[string]string)}

		dest := make([]interface{}, len(cols))
		fieldVals := make([]sql.NullString, len(cols))
		for i, col := range cols {
			switch col {
			case "id":
				dest[i] = &task.ID
			case "color":
				dest[i] = &task.Color
			case "position_x":
				dest[i] = &task.Position.X
			case "position_y":
				dest[i] = &task.Position.Y
			case "completed":
				dest[i] = &task.Completed
			case "completed_date":
				dest[i] = &task.CompletedDate
			case "deleted":
				dest[i] = &task.Deleted
			case "created_at":
				dest[i] = &task.CreatedAt
			case "updated_at":
				dest[i] = &task.UpdatedAt
			case "sync_status":
				dest[i] = (*string)(&task.SyncStatus)
			default:
				dest[i] = &fieldVals[i]
			}
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		for i, col := range cols {
			if _, ok := fixed[col]; ok {
				continue
			}
			task.Fields[col] = fieldVals[i].String
		}

		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// SaveSnapshot writes the given tasks and buffered history entries in one
// transaction. All-or-nothing: on error nothing is committed and the caller
// keeps its dirty state for the next attempt.
//
// History inserts are duplicate-safe (INSERT OR IGNORE) since the primary
// key already encodes logical identity and the recorder deduplicates
// upstream.
func (s *Store) SaveSnapshot(tasks []*schema.Task, history []schema.HistoryEntry, fieldNames []string) error {
	return s.SaveSnapshotContext(context.Background(), tasks, history, fieldNames)
}

// SaveSnapshotContext writes a snapshot with context support.
func (s *Store) SaveSnapshotContext(ctx context.Context, tasks []*schema.Task, history []schema.HistoryEntry, fieldNames []string) error {
	for _, name := range fieldNames {
		if !validColumnName(name) {
			return fmt.Errorf("invalid field name %q", name)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cols := append(append([]string{}, fixedColumns...), fieldNames...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	upsert := fmt.Sprintf(
		"INSERT OR REPLACE INTO tasks (%s) VALUES (%s)",
		strings.Join(cols, ", "), placeholders,
	)

	for _, t := range tasks {
		args := []interface{}{
			t.ID, t.Color, t.Position.X, t.Position.Y,
			t.Completed, t.CompletedDate, t.Deleted,
			t.CreatedAt, t.UpdatedAt, string(t.SyncStatus),
		}
		for _, name := range fieldNames {
			args = append(args, t.Field(name))
		}
		if _, err := tx.ExecContext(ctx, upsert, args...); err != nil {
			return fmt.Errorf("failed to upsert task %s: %w", t.ID, err)
		}
	}

	for _, h := range history {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO task_history
			(task_id, field_name, field_value, action, timestamp)
			VALUES (?, ?, ?, ?, ?)`,
			h.TaskID, h.FieldName, h.Value, h.Action, h.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history for %s.%s: %w", h.TaskID, h.FieldName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// TaskHistory returns the full change log for a task, grouped by field and
// ordered by timestamp ascending within each field.
func (s *Store) TaskHistory(taskID string) (map[string][]schema.HistoryEntry, error) {
	return s.TaskHistoryContext(context.Background(), taskID)
}

// TaskHistoryContext returns task history with context support.
func (s *Store) TaskHistoryContext(ctx context.Context, taskID string) (map[string][]schema.HistoryEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT field_name, field_value, action, timestamp
		FROM task_history
		WHERE task_id = ?
		ORDER BY timestamp ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query task history: %w", err)
	}
	defer rows.Close()

	byField := make(map[string][]schema.HistoryEntry)
	for rows.Next() {
		entry := schema.HistoryEntry{TaskID: taskID}
		if err := rows.Scan(&entry.FieldName, &entry.Value, &entry.Action, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		byField[entry.FieldName] = append(byField[entry.FieldName], entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return byField, nil
}

// AppendSyncLog records one audit row for a sync round.
func (s *Store) AppendSyncLog(syncType, status, message string) error {
	return s.AppendSyncLogContext(context.Background(), syncType, status, message)
}

// AppendSyncLogContext records a sync audit row with context support.
func (s *Store) AppendSyncLogContext(ctx context.Context, syncType, status, message string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO sync_log (last_sync_at, sync_type, status, message)
		VALUES (?, ?, ?, ?)`,
		schema.Now(), syncType, status, message,
	)
	if err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}
	return nil
}

// RecentSyncLog returns the newest sync audit rows, most recent first.
func (s *Store) RecentSyncLog(limit int) ([]schema.SyncLogEntry, error) {
	return s.RecentSyncLogContext(context.Background(), limit)
}

// RecentSyncLogContext returns recent sync rows with context support.
func (s *Store) RecentSyncLogContext(ctx context.Context, limit int) ([]schema.SyncLogEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, last_sync_at, sync_type, status, message
		FROM sync_log
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer rows.Close()

	var entries []schema.SyncLogEntry
	for rows.Next() {
		var e schema.SyncLogEntry
		if err := rows.Scan(&e.ID, &e.LastSyncAt, &e.SyncType, &e.Status, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync log: %w", err)
	}
	return entries, nil
}

// CountTasks returns the number of task rows, tombstones included.
// Used by tests and the status command.
func (s *Store) CountTasks() (int, error) {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM tasks").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// CountHistory returns the number of history rows for a task.
func (s *Store) CountHistory(taskID string) (int, error) {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM task_history WHERE task_id = ?", taskID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}
