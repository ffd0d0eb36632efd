// Package schema provides the data structures shared by the cache, store,
// and sync layers: task records, scheduled-task records, and history entries.
package schema

import (
	"fmt"
	"time"
)

// SyncStatus marks whether a task's last known local state has been
// confirmed replicated to the remote service.
type SyncStatus string

const (
	// SyncUnset is the zero value for records that predate sync tracking.
	SyncUnset SyncStatus = ""
	// SyncModified means the record has a local write not yet uploaded.
	SyncModified SyncStatus = "modified"
	// SyncSynced means the remote confirmed the record as of its last upload.
	SyncSynced SyncStatus = "synced"
)

// TimeFormat is the timestamp layout used everywhere a timestamp is stored
// or compared. RFC 3339 strings in UTC compare correctly as plain strings,
// which the sync engine's last-writer-wins policy relies on.
const TimeFormat = time.RFC3339

// Now returns the current time formatted for storage.
func Now() string {
	return time.Now().UTC().Format(TimeFormat)
}

// Today returns the current date in YYYY-MM-DD form, the format used by
// completed_date and the visibility filter.
func Today() string {
	return time.Now().Format("2006-01-02")
}

// Position is on-screen placement metadata. It is opaque to the persistence
// layer and excluded from field history (it churns on every drag).
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Task is a single tracked task. Identity is the caller-assigned ID.
//
// The fixed columns carry presentation and lifecycle metadata. Everything
// the user actually edits lives in Fields, keyed by the names the field
// schema declares; the persistence layer treats those values as opaque
// strings.
type Task struct {
	ID            string     `json:"id"`
	Color         string     `json:"color"`
	Position      Position   `json:"position"`
	Completed     bool       `json:"completed"`
	CompletedDate string     `json:"completed_date"`
	Deleted       bool       `json:"deleted"`
	CreatedAt     string     `json:"created_at"`
	UpdatedAt     string     `json:"updated_at"`
	SyncStatus    SyncStatus `json:"sync_status,omitempty"`

	// Fields holds the user-editable attributes by field name.
	Fields map[string]string `json:"fields"`
}

// DefaultColor matches the color assigned to tasks created without one.
const DefaultColor = "#4ECDC4"

// Clone returns a deep copy. The cache hands out clones so callers can
// never alias its internal state.
func (t *Task) Clone() *Task {
	c := *t
	c.Fields = make(map[string]string, len(t.Fields))
	for k, v := range t.Fields {
		c.Fields[k] = v
	}
	return &c
}

// Field returns the value of a user field, or "" when unset.
func (t *Task) Field(name string) string {
	if t.Fields == nil {
		return ""
	}
	return t.Fields[name]
}

// SetField sets a user field value, allocating the map if needed.
func (t *Task) SetField(name, value string) {
	if t.Fields == nil {
		t.Fields = make(map[string]string)
	}
	t.Fields[name] = value
}

// Validate checks the minimum a record needs before entering the cache.
// Field-level validation (required fields etc.) belongs to the form layer,
// not here.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

// HistoryEntry is one immutable record of a user-field change.
// Entries are composite-unique on (TaskID, FieldName, Timestamp).
type HistoryEntry struct {
	TaskID    string `json:"task_id"`
	FieldName string `json:"field_name"`
	Value     string `json:"value"`
	Action    string `json:"action"` // "create" or "update"
	Timestamp string `json:"timestamp"`
}

// History actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// SyncLogEntry is one audit row summarizing a sync round.
type SyncLogEntry struct {
	ID         int64  `json:"id"`
	LastSyncAt string `json:"last_sync_at"`
	SyncType   string `json:"sync_type"` // upload, download, overwrite_server
	Status     string `json:"status"`
	Message    string `json:"message"`
}
