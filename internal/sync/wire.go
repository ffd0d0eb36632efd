package sync

import (
	"encoding/json"
	"fmt"

	"github.com/quadrant-tasks/quadrant/internal/schema"
)

// The wire format is a flat JSON object: fixed columns plus every user
// field at the top level, with position nested as {x, y}. User fields can't
// be enumerated at compile time, so encoding goes through a map.

var wireFixedKeys = map[string]struct{}{
	"id": {}, "color": {}, "position": {},
	"completed": {}, "completed_date": {}, "deleted": {},
	"created_at": {}, "updated_at": {}, "sync_status": {},
}

// EncodeTask converts a task to its wire representation. sync_status is a
// local concern and never leaves the machine.
func EncodeTask(t *schema.Task) map[string]interface{} {
	payload := map[string]interface{}{
		"id":             t.ID,
		"color":          t.Color,
		"position":       t.Position,
		"completed":      t.Completed,
		"completed_date": t.CompletedDate,
		"deleted":        t.Deleted,
		"created_at":     t.CreatedAt,
		"updated_at":     t.UpdatedAt,
	}
	for name, value := range t.Fields {
		if _, clash := wireFixedKeys[name]; clash {
			continue
		}
		payload[name] = value
	}
	return payload
}

// DecodeTask parses a wire task. Unknown top-level string values become
// user fields; the field schema decides later which of them survive into
// the cache.
func DecodeTask(raw json.RawMessage) (*schema.Task, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("invalid task object: %w", err)
	}

	t := &schema.Task{Fields: make(map[string]string)}

	if err := unmarshalKey(m, "id", &t.ID); err != nil {
		return nil, err
	}
	if t.ID == "" {
		return nil, fmt.Errorf("task object missing id")
	}
	if err := unmarshalKey(m, "color", &t.Color); err != nil {
		return nil, err
	}
	if err := unmarshalKey(m, "position", &t.Position); err != nil {
		return nil, err
	}
	if err := unmarshalKey(m, "completed", &t.Completed); err != nil {
		return nil, err
	}
	if err := unmarshalKey(m, "completed_date", &t.CompletedDate); err != nil {
		return nil, err
	}
	if err := unmarshalKey(m, "deleted", &t.Deleted); err != nil {
		return nil, err
	}
	if err := unmarshalKey(m, "created_at", &t.CreatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalKey(m, "updated_at", &t.UpdatedAt); err != nil {
		return nil, err
	}

	for key, val := range m {
		if _, fixed := wireFixedKeys[key]; fixed {
			continue
		}
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			// Non-string extras (server-side bookkeeping like user_id)
			// are not user fields; skip them.
			continue
		}
		t.Fields[key] = s
	}
	return t, nil
}

func unmarshalKey(m map[string]json.RawMessage, key string, dst interface{}) error {
	raw, ok := m[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}
