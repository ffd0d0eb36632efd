// Package cache implements the write-back task cache: the single in-memory
// source of truth for all task state.
//
// Callers mutate tasks only through SaveTask and DeleteTask. Both complete
// the in-memory mutation and the history diff before returning; durability
// (Flush) and remote replication happen later, out of band. One mutex guards
// the task map, the history buffer, and the dirty flag.
//
// The cache, not the store, is authoritative: a failed flush leaves the
// dirty state in place for the next attempt and never rolls back memory.
package cache

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/quadrant-tasks/quadrant/internal/fields"
	"github.com/quadrant-tasks/quadrant/internal/schema"
	"github.com/quadrant-tasks/quadrant/internal/store"
)

// Filter selects which tasks LoadTasks returns.
type Filter int

const (
	// All returns every task, tombstones included.
	All Filter = iota
	// Visible returns tasks that should appear on the board: not deleted,
	// and either incomplete or completed today. A task completed on a prior
	// day drops out of Visible even though it is not deleted.
	Visible
	// ActiveOnly returns tasks that are neither deleted nor completed.
	ActiveOnly
)

// Cache is the write-back cache over the durable store.
type Cache struct {
	store  *store.Store
	schema fields.Provider
	logger *log.Logger

	mu      sync.Mutex
	tasks   map[string]*schema.Task
	history []schema.HistoryEntry
	dirty   bool
}

// New creates a cache over the given store and field schema. Call Load
// before use to populate it. If logger is nil, a default logger writing to
// stderr is used.
func New(st *store.Store, provider fields.Provider, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.New(os.Stderr, "[cache] ", log.LstdFlags)
	}
	return &Cache{
		store:  st,
		schema: provider,
		logger: logger,
		tasks:  make(map[string]*schema.Task),
	}
}

// Load populates the cache from the durable store. This is the one read of
// the tasks table; afterwards the store is write-only for task state.
//
// Failure here is fatal to initialization and must propagate.
func (c *Cache) Load() error {
	tasks, err := c.store.LoadAllTasks()
	if err != nil {
		return fmt.Errorf("failed to load tasks into cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tasks = make(map[string]*schema.Task, len(tasks))
	for _, t := range tasks {
		c.tasks[t.ID] = t
	}
	c.history = nil
	c.dirty = false

	c.logger.Printf("Loaded %d tasks into cache", len(tasks))
	return nil
}

// SaveTask upserts a task record. The history diff runs against the
// previous cached state before the record is stored; the record comes out
// with updated_at set to now and sync_status marked modified. created_at is
// assigned on first save and preserved on updates.
//
// Field validation is the form layer's job; the only errors here are
// internal ones.
func (c *Cache) SaveTask(rec *schema.Task) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("cannot save task: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.tasks[rec.ID]
	now := schema.Now()

	c.recordHistory(prev, rec, now)

	t := c.normalize(rec)
	t.UpdatedAt = now
	t.SyncStatus = schema.SyncModified
	if prev != nil {
		t.CreatedAt = prev.CreatedAt
	} else {
		t.CreatedAt = now
	}

	c.tasks[t.ID] = t
	c.dirty = true
	return nil
}

// DeleteTask logically deletes a task: the record stays in the cache (and
// the store) as a tombstone. Returns false when the id is unknown; an
// unknown id is a logical condition reported to the caller, not an error.
func (c *Cache) DeleteTask(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tasks[id]
	if !ok {
		c.logger.Printf("Cannot delete unknown task %s", id)
		return false
	}

	t.Deleted = true
	t.UpdatedAt = schema.Now()
	t.SyncStatus = schema.SyncModified
	c.dirty = true
	return true
}

// LoadTasks returns a filtered snapshot ordered newest-first by created_at.
// The returned records are copies; mutating them does not touch the cache.
func (c *Cache) LoadTasks(filter Filter) []*schema.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := schema.Today()

	var out []*schema.Task
	for _, t := range c.tasks {
		switch filter {
		case All:
		case Visible:
			if t.Deleted {
				continue
			}
			if t.Completed && t.CompletedDate != today {
				continue
			}
		case ActiveOnly:
			if t.Deleted || t.Completed {
				continue
			}
		}
		out = append(out, t.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// GetTask returns a copy of a single task, tombstoned or not.
func (c *Cache) GetTask(id string) (*schema.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Flush drains the dirty cache into the durable store in one transaction.
// When the cache is clean this returns immediately; it runs on a short
// interval so the clean path must stay cheap.
//
// The mutex is held for the whole transaction, so a slow disk blocks
// concurrent writers for the duration. On failure the dirty flag and the
// history buffer are left intact and the same data is retried on the next
// flush.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	tasks := make([]*schema.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		tasks = append(tasks, t)
	}

	if err := c.store.SaveSnapshot(tasks, c.history, c.schema.Names()); err != nil {
		c.logger.Printf("Flush failed, will retry: %v", err)
		return fmt.Errorf("failed to flush cache: %w", err)
	}

	c.history = nil
	c.dirty = false
	return nil
}

// TaskHistory returns the per-field change log for a task. The buffered
// history is never read directly; a flush always runs first so the store is
// the single source for history reads.
func (c *Cache) TaskHistory(id string) (map[string][]schema.HistoryEntry, error) {
	if err := c.Flush(); err != nil {
		return nil, err
	}
	return c.store.TaskHistory(id)
}

// UnsyncedTasks returns copies of every task whose last local write has not
// been confirmed uploaded.
func (c *Cache) UnsyncedTasks() []*schema.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*schema.Task
	for _, t := range c.tasks {
		if t.SyncStatus != schema.SyncSynced {
			out = append(out, t.Clone())
		}
	}
	return out
}

// PendingCount returns the number of tasks awaiting upload.
func (c *Cache) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, t := range c.tasks {
		if t.SyncStatus != schema.SyncSynced {
			count++
		}
	}
	return count
}

// MarkSynced flips a task to synced after a confirmed upload, but only if
// the cache state still matches the uploaded payload: a local write that
// landed during the upload keeps the task modified so the next round
// re-uploads it.
func (c *Cache) MarkSynced(id, uploadedAt string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tasks[id]
	if !ok || t.UpdatedAt != uploadedAt {
		return false
	}
	t.SyncStatus = schema.SyncSynced
	c.dirty = true
	return true
}

// ApplyRemote overwrites the local record with remote state when the remote
// is strictly newer by updated_at (lexicographic RFC 3339 comparison; an
// absent local record counts as older). Last-writer-wins, whole record, no
// field-level merge. Returns true if the local record changed.
func (c *Cache) ApplyRemote(remote *schema.Task) bool {
	if remote.ID == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	local, ok := c.tasks[remote.ID]
	if ok && remote.UpdatedAt <= local.UpdatedAt {
		return false
	}

	t := c.normalize(remote)
	t.CreatedAt = remote.CreatedAt
	t.UpdatedAt = remote.UpdatedAt
	if t.CreatedAt == "" {
		t.CreatedAt = schema.Now()
	}
	t.SyncStatus = schema.SyncSynced

	c.tasks[t.ID] = t
	c.dirty = true
	return true
}

// normalize builds the cache's own copy of an incoming record: defaults
// applied, and only the fields the schema currently declares carried over.
// Must be called with the lock held (it consults the schema provider, which
// is re-read on every operation by design).
func (c *Cache) normalize(rec *schema.Task) *schema.Task {
	t := &schema.Task{
		ID:            rec.ID,
		Color:         rec.Color,
		Position:      rec.Position,
		Completed:     rec.Completed,
		CompletedDate: rec.CompletedDate,
		Deleted:       rec.Deleted,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
		SyncStatus:    rec.SyncStatus,
		Fields:        make(map[string]string),
	}
	if t.Color == "" {
		t.Color = schema.DefaultColor
	}
	for _, name := range c.schema.Names() {
		t.Fields[name] = rec.Field(name)
	}
	return t
}
