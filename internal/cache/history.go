package cache

import "github.com/quadrant-tasks/quadrant/internal/schema"

// recordHistory computes the field-level diff between the previous cached
// state and an incoming record and appends one history entry per changed
// field, all stamped with the owning write's timestamp.
//
// Rules:
//   - only fields the schema currently declares are considered
//   - a field absent from the incoming record is skipped, not cleared
//   - identical values produce no entry, so repeated saves are idempotent
//   - action is "create" when the previous value was empty, "update" after
//
// On-screen position never reaches this diff: it lives in the fixed columns,
// not the user fields, precisely because recording every drag would bury the
// entries that capture intent.
//
// Must be called with c.mu held.
func (c *Cache) recordHistory(prev, incoming *schema.Task, stamp string) {
	for _, name := range c.schema.Names() {
		newVal, present := incoming.Fields[name]
		if !present {
			continue
		}

		prevVal := ""
		if prev != nil {
			prevVal = prev.Field(name)
		}
		if newVal == prevVal {
			continue
		}

		action := schema.ActionUpdate
		if prevVal == "" {
			action = schema.ActionCreate
		}

		c.history = append(c.history, schema.HistoryEntry{
			TaskID:    incoming.ID,
			FieldName: name,
			Value:     newVal,
			Action:    action,
			Timestamp: stamp,
		})
	}
}

// bufferedHistory returns the current history buffer length. Test hook.
func (c *Cache) bufferedHistory() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}
