package sync

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/quadrant-tasks/quadrant/internal/cache"
	"github.com/quadrant-tasks/quadrant/internal/store"
)

// engine implements the Syncer interface.
type engine struct {
	cache  *cache.Cache
	store  *store.Store
	client *Client
	logger *log.Logger
}

// New creates a Syncer over the given cache and store.
//
// If logger is nil, a default logger writing to stderr is used.
func New(c *cache.Cache, st *store.Store, client *Client, logger *log.Logger) Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &engine{
		cache:  c,
		store:  st,
		client: client,
		logger: logger,
	}
}

// Configured implements Syncer.Configured.
func (e *engine) Configured() bool {
	return e.client.Configured()
}

// Upload implements Syncer.Upload.
func (e *engine) Upload(ctx context.Context) error {
	if !e.client.Configured() {
		return nil
	}

	tasks := e.cache.UnsyncedTasks()
	if len(tasks) == 0 {
		return nil
	}

	uploaded, failed := 0, 0
	for _, t := range tasks {
		if err := e.client.PostTask(ctx, t); err != nil {
			// A 4xx here could be a permanently rejected payload, but the
			// policy is indefinite retry: sync_status stays modified.
			e.logger.Printf("Failed to upload task %s: %v", t.ID, err)
			failed++
			continue
		}
		// Only confirm if no local write landed during the upload.
		if e.cache.MarkSynced(t.ID, t.UpdatedAt) {
			uploaded++
		}
	}

	status := "success"
	if failed > 0 {
		status = "partial"
	}
	msg := fmt.Sprintf("uploaded %d of %d tasks", uploaded, len(tasks))
	if err := e.store.AppendSyncLogContext(ctx, "upload", status, msg); err != nil {
		e.logger.Printf("Failed to record upload audit row: %v", err)
	}

	e.logger.Printf("Upload round: %s (failed=%d)", msg, failed)
	return nil
}

// Download implements Syncer.Download.
func (e *engine) Download(ctx context.Context) error {
	if !e.client.Configured() {
		return nil
	}

	remote, err := e.client.GetTasks(ctx)
	if err != nil {
		e.logger.Printf("Failed to fetch remote tasks: %v", err)
		return fmt.Errorf("download failed: %w", err)
	}

	applied := 0
	for _, t := range remote {
		if e.cache.ApplyRemote(t) {
			applied++
		}
	}

	msg := fmt.Sprintf("applied %d of %d remote tasks", applied, len(remote))
	if err := e.store.AppendSyncLogContext(ctx, "download", "success", msg); err != nil {
		e.logger.Printf("Failed to record download audit row: %v", err)
	}

	e.logger.Printf("Download round: %s", msg)
	return nil
}

// Sync implements Syncer.Sync.
func (e *engine) Sync(ctx context.Context) {
	if err := e.Upload(ctx); err != nil {
		e.logger.Printf("Upload round failed: %v", err)
	}
	if err := e.Download(ctx); err != nil {
		e.logger.Printf("Download round failed: %v", err)
	}
}

// OverwriteServer implements Syncer.OverwriteServer.
func (e *engine) OverwriteServer(ctx context.Context) error {
	if !e.client.Configured() {
		return fmt.Errorf("no remote endpoint configured")
	}

	remote, err := e.client.GetTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch remote tasks: %w", err)
	}

	deleteFailed := 0
	for _, t := range remote {
		if err := e.client.DeleteTask(ctx, t.ID); err != nil {
			e.logger.Printf("Failed to delete remote task %s: %v", t.ID, err)
			deleteFailed++
		}
	}
	if deleteFailed > 0 {
		e.logger.Printf("%d remote deletes failed, continuing with upload", deleteFailed)
	}

	local := e.cache.LoadTasks(cache.All)
	uploaded := 0
	for _, t := range local {
		if err := e.client.PostTask(ctx, t); err != nil {
			e.logger.Printf("Failed to upload task %s: %v", t.ID, err)
			continue
		}
		e.cache.MarkSynced(t.ID, t.UpdatedAt)
		uploaded++
	}

	msg := fmt.Sprintf("deleted %d remote tasks, uploaded %d local tasks", len(remote), uploaded)
	if err := e.store.AppendSyncLogContext(ctx, "overwrite_server", "success", msg); err != nil {
		e.logger.Printf("Failed to record overwrite audit row: %v", err)
	}

	e.logger.Printf("Overwrite complete: %s", msg)
	return nil
}

// Status implements Syncer.Status.
func (e *engine) Status(ctx context.Context) (*Status, error) {
	// History and audit reads go to the store, so flush first.
	if err := e.cache.Flush(); err != nil {
		return nil, err
	}

	recent, err := e.store.RecentSyncLogContext(ctx, 5)
	if err != nil {
		return nil, err
	}

	return &Status{
		LastRounds:   recent,
		PendingCount: e.cache.PendingCount(),
		Configured:   e.client.Configured(),
	}, nil
}
