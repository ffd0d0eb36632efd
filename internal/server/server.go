// Package server implements the remote half of the sync protocol: a small
// HTTP service holding the replicated task set. Clients upload with POST
// (upsert by id), download the full list with GET, and remove rows with
// DELETE. Requests authenticate with a bearer token, passed through
// opaquely from configuration.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/quadrant-tasks/quadrant/internal/schema"
	"github.com/quadrant-tasks/quadrant/internal/sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Server is the remote task service.
type Server struct {
	db    *sql.DB
	token string
	echo  *echo.Echo
}

// New opens (or creates) the server database and wires up the routes.
// An empty token disables authentication.
func New(dbPath, token string) (*Server, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open server database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping server database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	ddl := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		color TEXT DEFAULT '',
		position_x INTEGER DEFAULT 100,
		position_y INTEGER DEFAULT 100,
		completed INTEGER NOT NULL DEFAULT 0,
		completed_date TEXT DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT '',
		fields TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at);
	`
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize server schema: %w", err)
	}

	s := &Server{db: db, token: token}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(s.authMiddleware)

	e.GET("/api/tasks", s.listTasks)
	e.POST("/api/tasks", s.upsertTask)
	e.DELETE("/api/tasks/:id", s.deleteTask)

	s.echo = e
	return s, nil
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	log.Infof("Task server listening on %s", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the listener and closes the database.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.token == "" {
			return next(c)
		}
		auth := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.token {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		return next(c)
	}
}

func (s *Server) listTasks(c echo.Context) error {
	rows, err := s.db.QueryContext(c.Request().Context(), `
		SELECT id, color, position_x, position_y, completed, completed_date,
		       deleted, created_at, updated_at, fields
		FROM tasks`)
	if err != nil {
		log.Errorf("list tasks: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	defer rows.Close()

	tasks := make([]map[string]interface{}, 0)
	for rows.Next() {
		var t schema.Task
		var fieldsJSON string
		err := rows.Scan(
			&t.ID, &t.Color, &t.Position.X, &t.Position.Y,
			&t.Completed, &t.CompletedDate, &t.Deleted,
			&t.CreatedAt, &t.UpdatedAt, &fieldsJSON,
		)
		if err != nil {
			log.Errorf("scan task: %v", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "scan failed")
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &t.Fields); err != nil {
			t.Fields = map[string]string{}
		}
		tasks = append(tasks, sync.EncodeTask(&t))
	}
	if err := rows.Err(); err != nil {
		log.Errorf("iterate tasks: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "iteration failed")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (s *Server) upsertTask(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	t, err := sync.DecodeTask(body)
	if err != nil {
		log.Warnf("rejecting task payload: %v", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	fieldsJSON, err := json.Marshal(t.Fields)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "encode failed")
	}

	_, err = s.db.ExecContext(c.Request().Context(), `
		INSERT INTO tasks (
			id, color, position_x, position_y, completed, completed_date,
			deleted, created_at, updated_at, fields
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			color = excluded.color,
			position_x = excluded.position_x,
			position_y = excluded.position_y,
			completed = excluded.completed,
			completed_date = excluded.completed_date,
			deleted = excluded.deleted,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			fields = excluded.fields`,
		t.ID, t.Color, t.Position.X, t.Position.Y, t.Completed, t.CompletedDate,
		t.Deleted, t.CreatedAt, t.UpdatedAt, string(fieldsJSON),
	)
	if err != nil {
		log.Errorf("upsert task %s: %v", t.ID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "upsert failed")
	}

	log.Debugf("Upserted task %s", t.ID)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "id": t.ID})
}

func (s *Server) deleteTask(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id")
	}

	_, err := s.db.ExecContext(c.Request().Context(), "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		log.Errorf("delete task %s: %v", id, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}

	log.Debugf("Deleted task %s", id)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "id": id})
}

func readBody(c echo.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
