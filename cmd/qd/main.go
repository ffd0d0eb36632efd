// Command qd is the quadrant task tracker CLI: local task CRUD backed by
// the write-back cache, plus the background daemon, sync controls, and the
// reference remote server.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/quadrant-tasks/quadrant/internal/cache"
	"github.com/quadrant-tasks/quadrant/internal/config"
	"github.com/quadrant-tasks/quadrant/internal/fields"
	"github.com/quadrant-tasks/quadrant/internal/store"
	"github.com/quadrant-tasks/quadrant/internal/sync"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "qd",
	Short: "Personal task tracker with write-back persistence and remote sync",
	Long: `qd tracks tasks in a local SQLite database behind a write-back cache.

Writes land in memory immediately; a background flush makes them durable
and an optional sync daemon replicates them to a remote server. Run
"qd daemon" to keep the background loops alive, or use the one-shot
commands which flush before exiting.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(),
		"config file path")
}

// app bundles the wired-up persistence engine for a CLI invocation.
type app struct {
	cfg    *config.Config
	store  *store.Store
	fields *fields.FileProvider
	cache  *cache.Cache
	client *sync.Client
	syncer sync.Syncer
	logger *log.Logger
}

// openApp loads config and brings up store, field schema, cache, and sync
// engine. Store failures here are the one fatal path: without a usable
// database nothing else is meaningful.
func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, "[qd] ")

	provider, err := fields.NewFileProvider(cfg.Path, newLogger(cfg, "[fields] "))
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	if err := st.InitSchema(provider.Names()); err != nil {
		_ = provider.Close()
		_ = st.Close()
		return nil, err
	}

	c := cache.New(st, provider, newLogger(cfg, "[cache] "))
	if err := c.Load(); err != nil {
		_ = provider.Close()
		_ = st.Close()
		return nil, err
	}

	client := sync.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token)
	syncer := sync.New(c, st, client, newLogger(cfg, "[sync] "))

	return &app{
		cfg:    cfg,
		store:  st,
		fields: provider,
		cache:  c,
		client: client,
		syncer: syncer,
		logger: logger,
	}, nil
}

// close flushes and releases everything. One-shot commands defer this so a
// clean exit is always durable.
func (a *app) close() {
	if err := a.cache.Flush(); err != nil {
		a.logger.Printf("Flush on close failed: %v", err)
	}
	if err := a.fields.Close(); err != nil {
		a.logger.Printf("Closing field watcher failed: %v", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Printf("Closing store failed: %v", err)
	}
}

// newLogger builds a prefixed logger, rotating to the configured log file
// when one is set and falling back to stderr otherwise.
func newLogger(cfg *config.Config, prefix string) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.LogPath != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}
	return log.New(w, prefix, log.LstdFlags)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
