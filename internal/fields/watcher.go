package fields

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FileProvider serves the field schema from a config file and re-reads it
// whenever the file changes on disk. Consumers calling Fields between writes
// always see the latest declared schema.
type FileProvider struct {
	path   string
	logger *log.Logger

	mu     sync.RWMutex
	fields []Field

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileProvider loads the schema from path and starts watching the file's
// directory for changes. A missing or invalid file falls back to Defaults.
//
// The caller must Close the provider to release the watcher.
func NewFileProvider(path string, logger *log.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[fields] ", log.LstdFlags)
	}

	p := &FileProvider{
		path:   path,
		logger: logger,
		done:   make(chan struct{}),
	}
	p.reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory rather than the file: editors replace files on
	// save, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}
	p.watcher = watcher

	go p.watchLoop()
	return p, nil
}

// Close stops the file watcher.
func (p *FileProvider) Close() error {
	close(p.done)
	return p.watcher.Close()
}

// Fields implements Provider.
func (p *FileProvider) Fields() []Field {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Field, len(p.fields))
	copy(out, p.fields)
	return out
}

// Names implements Provider.
func (p *FileProvider) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.fields))
	for i, f := range p.fields {
		names[i] = f.Name
	}
	return names
}

func (p *FileProvider) watchLoop() {
	for {
		select {
		case <-p.done:
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			p.logger.Printf("Field schema changed, reloading: %s", p.path)
			p.reload()

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Printf("Watcher error: %v", err)
		}
	}
}

// reload re-reads the schema file. On any failure the previous schema (or
// the defaults) stays in effect.
func (p *FileProvider) reload() {
	loaded, err := loadFields(p.path)
	if err != nil {
		p.logger.Printf("Failed to load field schema from %s: %v", p.path, err)
		loaded = nil
	}
	if len(loaded) == 0 {
		loaded = Defaults()
	}

	p.mu.Lock()
	p.fields = loaded
	p.mu.Unlock()
}

func loadFields(path string) ([]Field, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var fields []Field
	if err := v.UnmarshalKey("task_fields", &fields); err != nil {
		return nil, fmt.Errorf("failed to parse task_fields: %w", err)
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("task_fields entry missing name")
		}
	}
	return fields, nil
}
