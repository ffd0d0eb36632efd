// Package sync replicates local task state to and from the remote task
// service.
//
// The engine runs two independent directions. Upload POSTs every task whose
// sync_status is not yet confirmed; download GETs the remote's full list and
// applies records that are strictly newer than the local copy. Conflicts
// resolve last-writer-wins on the updated_at timestamp; there is no
// field-level merge.
//
// One task's failure never blocks the rest of a round, and a failed round
// is simply retried at the next interval. Nothing here ever interrupts the
// caller of SaveTask.
package sync

import (
	"context"

	"github.com/quadrant-tasks/quadrant/internal/schema"
)

// Status summarizes the sync engine's recent activity.
type Status struct {
	// LastRounds holds the newest audit rows, most recent first.
	LastRounds []schema.SyncLogEntry `json:"last_rounds"`
	// PendingCount is the number of tasks awaiting upload.
	PendingCount int `json:"pending_count"`
	// Configured reports whether a remote endpoint is set.
	Configured bool `json:"configured"`
}

// Syncer replicates cache state against the remote service.
type Syncer interface {
	// Upload POSTs every task whose sync_status != synced, one request per
	// task. A successful upload marks the task synced only if no local
	// write happened in the meantime. Individual failures are logged and
	// skipped; a summary audit row is recorded regardless of partial
	// failure.
	//
	// With no remote configured this is a no-op.
	Upload(ctx context.Context) error

	// Download GETs the remote's full task list and overwrites any local
	// record whose remote counterpart is strictly newer by updated_at
	// (lexicographic RFC 3339 comparison; an absent local record counts as
	// older). Local records that are newer stay untouched and will be
	// uploaded next round.
	//
	// Wall-clock timestamps mean clock drift between writers can pick the
	// "wrong" winner; this is a documented limitation of the policy.
	Download(ctx context.Context) error

	// Sync runs one upload round then one download round. Errors in either
	// direction are logged, never propagated: the next scheduled attempt
	// will retry.
	Sync(ctx context.Context)

	// OverwriteServer deletes every remote task and re-uploads the full
	// local state. Destructive recovery operation, only ever triggered
	// explicitly.
	OverwriteServer(ctx context.Context) error

	// Status flushes the cache and returns the recent audit rows plus the
	// pending-upload count.
	Status(ctx context.Context) (*Status, error)

	// Configured reports whether a remote endpoint is set.
	Configured() bool
}
