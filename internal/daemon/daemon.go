// Package daemon runs the background loops that keep the cache durable and
// replicated: a flush loop draining dirty state into the store, and a sync
// loop exchanging state with the remote service.
//
// The loops share no channel between themselves; they coordinate only
// through the cache's synchronized API. Shutdown performs a final flush
// (and upload, when a remote is configured) so a clean exit loses nothing.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	stdsync "sync"
	"time"

	"github.com/quadrant-tasks/quadrant/internal/cache"
	"github.com/quadrant-tasks/quadrant/internal/sync"
)

// Config holds daemon configuration.
type Config struct {
	// FlushInterval is how often dirty cache state is written to the store.
	FlushInterval time.Duration

	// SyncInterval is how often a sync round runs against the remote.
	SyncInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		FlushInterval: 5 * time.Second,
		SyncInterval:  3 * time.Minute,
		Logger:        log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon owns the flush and sync loops.
type Daemon struct {
	cache  *cache.Cache
	syncer sync.Syncer
	config *Config

	kick chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     stdsync.WaitGroup
}

// New creates a Daemon. The cache must already be loaded. A nil syncer (or
// an unconfigured one) leaves the daemon in local mode: only the flush loop
// runs.
func New(c *cache.Cache, syncer sync.Syncer, config *Config) (*Daemon, error) {
	if c == nil {
		return nil, fmt.Errorf("cache cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = 3 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		cache:  c,
		syncer: syncer,
		config: config,
		kick:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start runs the loops and blocks until ctx is cancelled, then performs the
// shutdown flush/upload.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Printf("Starting: flush every %s, sync every %s",
		d.config.FlushInterval, d.config.SyncInterval)

	d.wg.Add(1)
	go d.flushLoop()

	if d.syncEnabled() {
		d.wg.Add(1)
		go d.syncLoop()
	} else {
		d.config.Logger.Println("No remote configured, running in local mode")
	}

	select {
	case <-ctx.Done():
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop shuts the loops down after a final flush and, when a remote is
// configured, a final upload. Data written after the last tick survives a
// clean shutdown.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping")

	if err := d.cache.Flush(); err != nil {
		d.config.Logger.Printf("Final flush failed: %v", err)
	}
	if d.syncEnabled() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), sync.DefaultTimeout)
		defer cancel()
		if err := d.syncer.Upload(shutdownCtx); err != nil {
			d.config.Logger.Printf("Final upload failed: %v", err)
		}
		// The upload may have marked tasks synced; persist that too.
		if err := d.cache.Flush(); err != nil {
			d.config.Logger.Printf("Post-upload flush failed: %v", err)
		}
	}

	d.cancel()
	d.wg.Wait()

	d.config.Logger.Println("Stopped")
	return nil
}

// KickSync requests an immediate sync round, used after a local delete so
// the tombstone replicates without waiting for the next interval. Non-
// blocking; a round already pending absorbs the kick.
func (d *Daemon) KickSync() {
	if !d.syncEnabled() {
		return
	}
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *Daemon) syncEnabled() bool {
	return d.syncer != nil && d.syncer.Configured()
}

// flushLoop periodically drains the dirty cache into the store. The flush
// itself is a no-op when the cache is clean, so a short interval is cheap.
func (d *Daemon) flushLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if err := d.cache.Flush(); err != nil {
				// Dirty flag stays set; the next tick retries the same data.
				d.config.Logger.Printf("Flush failed: %v", err)
			}
		}
	}
}

// syncLoop periodically runs a full sync round. A flush runs before and
// after each round so the store reflects both local state at upload time
// and any remote updates applied.
func (d *Daemon) syncLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
		case <-d.kick:
		}

		if err := d.cache.Flush(); err != nil {
			d.config.Logger.Printf("Pre-sync flush failed: %v", err)
		}
		d.syncer.Sync(d.ctx)
		if err := d.cache.Flush(); err != nil {
			d.config.Logger.Printf("Post-sync flush failed: %v", err)
		}
	}
}
