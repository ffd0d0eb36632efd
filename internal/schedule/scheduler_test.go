package schedule

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quadrant-tasks/quadrant/internal/cache"
	"github.com/quadrant-tasks/quadrant/internal/fields"
	"github.com/quadrant-tasks/quadrant/internal/schema"
	"github.com/quadrant-tasks/quadrant/internal/store"
)

func setupScheduler(t *testing.T) (*Scheduler, *cache.Cache, *store.Store) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	provider := fields.NewStatic(fields.Defaults())
	if err := st.InitSchema(provider.Names()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	c := cache.New(st, provider, log.New(os.Stderr, "[test] ", 0))
	if err := c.Load(); err != nil {
		t.Fatalf("failed to load cache: %v", err)
	}

	return NewScheduler(c, st, log.New(os.Stderr, "[test] ", 0)), c, st
}

func TestCreatePersistsSchedule(t *testing.T) {
	s, _, st := setupScheduler(t)

	start := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	sched, err := s.Create(CreateOptions{
		Title:     "weekly review",
		Priority:  "high",
		Frequency: schema.Weekly,
		Params:    Params{WeekDay: 5},
		Start:     start,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(sched.ID, "sched_") {
		t.Errorf("unexpected schedule id %q", sched.ID)
	}
	if sched.NextRunAt != "2026-09-04T00:02:00Z" {
		t.Errorf("unexpected first run %q", sched.NextRunAt)
	}
	if !sched.Active {
		t.Error("new schedule should be active")
	}

	stored, err := st.ListSchedules(false, "")
	if err != nil {
		t.Fatalf("ListSchedules failed: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != sched.ID {
		t.Errorf("schedule not persisted: %+v", stored)
	}
}

func TestCreateRejectsInvalidSchedule(t *testing.T) {
	s, _, _ := setupScheduler(t)

	if _, err := s.Create(CreateOptions{Frequency: schema.Daily}); err == nil {
		t.Fatal("expected error for schedule without title")
	}
	if _, err := s.Create(CreateOptions{Title: "x", Frequency: schema.Weekly}); err == nil {
		t.Fatal("expected error for weekly schedule without week day")
	}
}

func TestSpawnDue(t *testing.T) {
	s, c, st := setupScheduler(t)

	start := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	sched, err := s.Create(CreateOptions{
		Title:     "water plants",
		Priority:  "low",
		Notes:     "kitchen first",
		Frequency: schema.Daily,
		Start:     start,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Before the fire time nothing happens.
	spawned, err := s.SpawnDue(time.Date(2026, time.September, 1, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("SpawnDue failed: %v", err)
	}
	if spawned != 0 {
		t.Fatalf("expected 0 spawns before due time, got %d", spawned)
	}

	now := time.Date(2026, time.September, 2, 8, 0, 0, 0, time.UTC)
	spawned, err = s.SpawnDue(now)
	if err != nil {
		t.Fatalf("SpawnDue failed: %v", err)
	}
	if spawned != 1 {
		t.Fatalf("expected 1 spawn, got %d", spawned)
	}

	tasks := c.LoadTasks(cache.ActiveOnly)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task in cache, got %d", len(tasks))
	}
	task := tasks[0]
	if !strings.HasPrefix(task.ID, "scheduled_"+sched.ID) {
		t.Errorf("unexpected spawned task id %q", task.ID)
	}
	if task.Field("text") != "water plants" || task.Field("priority") != "low" || task.Field("notes") != "kitchen first" {
		t.Errorf("template fields not carried over: %+v", task.Fields)
	}

	// The schedule advanced past now, so a second check spawns nothing.
	stored, _ := st.ListSchedules(false, "")
	if stored[0].NextRunAt <= now.UTC().Format(schema.TimeFormat) {
		t.Errorf("schedule not advanced: %q", stored[0].NextRunAt)
	}
	spawned, err = s.SpawnDue(now)
	if err != nil {
		t.Fatalf("repeat SpawnDue failed: %v", err)
	}
	if spawned != 0 {
		t.Errorf("expected no repeat spawn, got %d", spawned)
	}

	// Spawned tasks are flushed, so they survive a reload.
	count, err := st.CountTasks()
	if err != nil {
		t.Fatalf("CountTasks failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 durable task row, got %d", count)
	}
}

func TestSpawnDueSkipsInactive(t *testing.T) {
	s, c, st := setupScheduler(t)

	sched := &schema.ScheduledTask{
		ID:        "sched_off",
		Title:     "paused",
		Frequency: schema.Daily,
		NextRunAt: "2026-01-01T00:02:00Z",
		Active:    false,
		CreatedAt: schema.Now(),
	}
	if err := st.UpsertSchedule(sched); err != nil {
		t.Fatalf("UpsertSchedule failed: %v", err)
	}

	spawned, err := s.SpawnDue(time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("SpawnDue failed: %v", err)
	}
	if spawned != 0 {
		t.Errorf("inactive schedule spawned %d tasks", spawned)
	}
	if got := c.LoadTasks(cache.All); len(got) != 0 {
		t.Errorf("expected empty cache, got %d tasks", len(got))
	}
}
