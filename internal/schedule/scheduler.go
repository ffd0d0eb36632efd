package schedule

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/quadrant-tasks/quadrant/internal/cache"
	"github.com/quadrant-tasks/quadrant/internal/schema"
	"github.com/quadrant-tasks/quadrant/internal/store"
)

// Scheduler manages scheduled-task templates and spawns concrete tasks
// when they come due. Spawned tasks go through the cache like any other
// write, so they pick up history recording and sync for free.
type Scheduler struct {
	cache  *cache.Cache
	store  *store.Store
	logger *log.Logger
}

// NewScheduler creates a Scheduler. If logger is nil, a default logger
// writing to stderr is used.
func NewScheduler(c *cache.Cache, st *store.Store, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(os.Stderr, "[schedule] ", log.LstdFlags)
	}
	return &Scheduler{cache: c, store: st, logger: logger}
}

// CreateOptions configures a new scheduled task.
type CreateOptions struct {
	Title     string
	Priority  string
	Notes     string
	DueDate   string
	Frequency schema.Frequency
	Params    Params

	// Start anchors the first NextRun computation; zero means now.
	Start time.Time
}

// Create registers a new scheduled-task template and returns it with its
// first fire time computed from the start anchor.
func (s *Scheduler) Create(opts CreateOptions) (*schema.ScheduledTask, error) {
	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}

	sched := &schema.ScheduledTask{
		ID:         "sched_" + uuid.NewString(),
		Title:      opts.Title,
		Priority:   opts.Priority,
		Notes:      opts.Notes,
		DueDate:    opts.DueDate,
		Frequency:  opts.Frequency,
		WeekDay:    opts.Params.WeekDay,
		MonthDay:   opts.Params.MonthDay,
		QuarterDay: opts.Params.QuarterDay,
		YearMonth:  opts.Params.YearMonth,
		YearDay:    opts.Params.YearDay,
		NextRunAt:  NextRun(opts.Frequency, start, opts.Params).UTC().Format(schema.TimeFormat),
		Active:     true,
		CreatedAt:  schema.Now(),
	}

	if err := s.store.UpsertSchedule(sched); err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	s.logger.Printf("Created schedule %s (%s, next run %s)", sched.ID, sched.Frequency, sched.NextRunAt)
	return sched, nil
}

// SpawnDue creates one task per active schedule whose next_run_at has
// passed, then advances each schedule. Individual schedule failures are
// logged and skipped. Returns the number of tasks spawned.
func (s *Scheduler) SpawnDue(now time.Time) (int, error) {
	cutoff := now.UTC().Format(schema.TimeFormat)
	due, err := s.store.ListSchedules(true, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list due schedules: %w", err)
	}

	spawned := 0
	for _, sched := range due {
		task := &schema.Task{
			ID:    fmt.Sprintf("scheduled_%s_%s", sched.ID, now.Format("20060102150405")),
			Color: schema.DefaultColor,
		}
		task.SetField("text", sched.Title)
		task.SetField("priority", sched.Priority)
		task.SetField("notes", sched.Notes)
		task.SetField("due_date", sched.DueDate)

		if err := s.cache.SaveTask(task); err != nil {
			s.logger.Printf("Failed to spawn task for schedule %s: %v", sched.ID, err)
			continue
		}

		next := NextRun(sched.Frequency, now, ParamsOf(sched)).UTC().Format(schema.TimeFormat)
		if err := s.store.UpdateScheduleNextRun(sched.ID, next); err != nil {
			s.logger.Printf("Failed to advance schedule %s: %v", sched.ID, err)
			continue
		}

		spawned++
		s.logger.Printf("Spawned %s from schedule %s, next run %s", task.ID, sched.ID, next)
	}

	if spawned > 0 {
		if err := s.cache.Flush(); err != nil {
			s.logger.Printf("Flush after spawning failed: %v", err)
		}
	}
	return spawned, nil
}
