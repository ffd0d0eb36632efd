package sync

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	stdsync "sync"
	"testing"

	"github.com/quadrant-tasks/quadrant/internal/cache"
	"github.com/quadrant-tasks/quadrant/internal/fields"
	"github.com/quadrant-tasks/quadrant/internal/schema"
	"github.com/quadrant-tasks/quadrant/internal/store"
)

// fakeRemote is an in-memory stand-in for the remote task service speaking
// the same wire protocol.
type fakeRemote struct {
	mu      stdsync.Mutex
	tasks   map[string]map[string]interface{}
	reject  map[string]bool // ids whose POST returns 500
	posts   int
	deletes int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		tasks:  make(map[string]map[string]interface{}),
		reject: make(map[string]bool),
	}
}

func (f *fakeRemote) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodGet:
			list := make([]map[string]interface{}, 0, len(f.tasks))
			for _, t := range f.tasks {
				list = append(list, t)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"tasks": list})

		case r.Method == http.MethodPost:
			f.posts++
			var payload map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			id, _ := payload["id"].(string)
			if id == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if f.reject[id] {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			f.tasks[id] = payload
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

		case r.Method == http.MethodDelete:
			f.deletes++
			id := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
			delete(f.tasks, id)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func (f *fakeRemote) put(t *schema.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[t.ID] = EncodeTask(t)
}

func (f *fakeRemote) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func setupEngine(t *testing.T, remote *fakeRemote) (Syncer, *cache.Cache, *store.Store) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	provider := fields.NewStatic(fields.Defaults())
	if err := st.InitSchema(provider.Names()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	c := cache.New(st, provider, log.New(os.Stderr, "[test] ", 0))
	if err := c.Load(); err != nil {
		t.Fatalf("failed to load cache: %v", err)
	}

	srv := httptest.NewServer(remote.handler())
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, "test-token")
	return New(c, st, client, log.New(os.Stderr, "[test] ", 0)), c, st
}

func saveTask(t *testing.T, c *cache.Cache, id, text string) *schema.Task {
	t.Helper()

	task := &schema.Task{ID: id}
	task.SetField("text", text)
	if err := c.SaveTask(task); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}
	saved, _ := c.GetTask(id)
	return saved
}

func TestUploadMarksSynced(t *testing.T) {
	remote := newFakeRemote()
	syncer, c, st := setupEngine(t, remote)

	saveTask(t, c, "t1", "buy milk")
	saveTask(t, c, "t2", "file taxes")

	if err := syncer.Upload(context.Background()); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if remote.count() != 2 {
		t.Errorf("expected 2 tasks on remote, got %d", remote.count())
	}
	if c.PendingCount() != 0 {
		t.Errorf("expected 0 pending after upload, got %d", c.PendingCount())
	}

	rows, err := st.RecentSyncLog(1)
	if err != nil {
		t.Fatalf("RecentSyncLog failed: %v", err)
	}
	if len(rows) != 1 || rows[0].SyncType != "upload" || rows[0].Status != "success" {
		t.Errorf("unexpected audit row: %+v", rows)
	}

	// A second round has nothing to send.
	before := remote.posts
	if err := syncer.Upload(context.Background()); err != nil {
		t.Fatalf("second Upload failed: %v", err)
	}
	if remote.posts != before {
		t.Errorf("clean upload round still posted %d tasks", remote.posts-before)
	}
}

func TestUploadPartialFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.reject["bad"] = true
	syncer, c, st := setupEngine(t, remote)

	saveTask(t, c, "good", "fine")
	saveTask(t, c, "bad", "rejected")

	if err := syncer.Upload(context.Background()); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	good, _ := c.GetTask("good")
	if good.SyncStatus != schema.SyncSynced {
		t.Errorf("successful upload not confirmed: %q", good.SyncStatus)
	}
	// The rejected task stays modified and retries forever.
	bad, _ := c.GetTask("bad")
	if bad.SyncStatus != schema.SyncModified {
		t.Errorf("failed upload should stay modified: %q", bad.SyncStatus)
	}

	rows, err := st.RecentSyncLog(1)
	if err != nil {
		t.Fatalf("RecentSyncLog failed: %v", err)
	}
	if rows[0].Status != "partial" {
		t.Errorf("expected partial status, got %q", rows[0].Status)
	}
}

func TestDownloadAppliesNewer(t *testing.T) {
	remote := newFakeRemote()
	syncer, c, st := setupEngine(t, remote)

	// Local record that the remote has a newer version of.
	saveTask(t, c, "stale", "old local")
	newer := &schema.Task{
		ID:        "stale",
		UpdatedAt: "2099-01-01T00:00:00Z",
		CreatedAt: "2026-01-01T00:00:00Z",
		Fields:    map[string]string{"text": "new remote"},
	}
	remote.put(newer)

	// Remote-only record.
	remote.put(&schema.Task{
		ID:        "fresh",
		UpdatedAt: "2026-08-01T00:00:00Z",
		CreatedAt: "2026-08-01T00:00:00Z",
		Fields:    map[string]string{"text": "from server"},
	})

	if err := syncer.Download(context.Background()); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	stale, _ := c.GetTask("stale")
	if stale.Field("text") != "new remote" {
		t.Errorf("newer remote not applied: %q", stale.Field("text"))
	}
	if _, ok := c.GetTask("fresh"); !ok {
		t.Error("remote-only task not applied")
	}

	rows, err := st.RecentSyncLog(1)
	if err != nil {
		t.Fatalf("RecentSyncLog failed: %v", err)
	}
	if rows[0].SyncType != "download" || rows[0].Status != "success" {
		t.Errorf("unexpected audit row: %+v", rows[0])
	}
}

func TestDownloadSkipsOlder(t *testing.T) {
	remote := newFakeRemote()
	syncer, c, _ := setupEngine(t, remote)

	saveTask(t, c, "t1", "local wins")
	remote.put(&schema.Task{
		ID:        "t1",
		UpdatedAt: "2000-01-01T00:00:00Z",
		Fields:    map[string]string{"text": "ancient remote"},
	})

	if err := syncer.Download(context.Background()); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	got, _ := c.GetTask("t1")
	if got.Field("text") != "local wins" {
		t.Errorf("older remote overwrote local: %q", got.Field("text"))
	}
	if got.SyncStatus != schema.SyncModified {
		t.Errorf("local record lost its pending upload: %q", got.SyncStatus)
	}
}

func TestSyncRoundTripsDelete(t *testing.T) {
	remote := newFakeRemote()
	syncer, c, _ := setupEngine(t, remote)

	saveTask(t, c, "t1", "doomed")
	if err := syncer.Upload(context.Background()); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// Delete locally, then sync: the tombstone replicates as a regular
	// upsert with deleted=true.
	if !c.DeleteTask("t1") {
		t.Fatal("DeleteTask failed")
	}
	syncer.Sync(context.Background())

	remote.mu.Lock()
	payload := remote.tasks["t1"]
	remote.mu.Unlock()
	if payload == nil {
		t.Fatal("tombstone missing on remote")
	}
	if deleted, _ := payload["deleted"].(bool); !deleted {
		t.Errorf("remote record not marked deleted: %v", payload)
	}
}

func TestOverwriteServer(t *testing.T) {
	remote := newFakeRemote()
	syncer, c, st := setupEngine(t, remote)

	// The remote has state the local machine never saw.
	remote.put(&schema.Task{ID: "remote_only", UpdatedAt: "2099-01-01T00:00:00Z"})

	saveTask(t, c, "local1", "mine")
	saveTask(t, c, "local2", "also mine")

	if err := syncer.OverwriteServer(context.Background()); err != nil {
		t.Fatalf("OverwriteServer failed: %v", err)
	}

	if remote.count() != 2 {
		t.Errorf("expected exactly the local tasks on remote, got %d", remote.count())
	}
	remote.mu.Lock()
	_, gone := remote.tasks["remote_only"]
	remote.mu.Unlock()
	if gone {
		t.Error("remote-only task survived overwrite")
	}

	rows, err := st.RecentSyncLog(1)
	if err != nil {
		t.Fatalf("RecentSyncLog failed: %v", err)
	}
	if rows[0].SyncType != "overwrite_server" {
		t.Errorf("unexpected audit row: %+v", rows[0])
	}
}

func TestStatus(t *testing.T) {
	remote := newFakeRemote()
	syncer, c, _ := setupEngine(t, remote)

	saveTask(t, c, "t1", "pending")
	syncer.Sync(context.Background())
	saveTask(t, c, "t2", "not yet uploaded")

	status, err := syncer.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Configured {
		t.Error("expected configured syncer")
	}
	if status.PendingCount != 1 {
		t.Errorf("expected 1 pending task, got %d", status.PendingCount)
	}
	if len(status.LastRounds) == 0 {
		t.Error("expected recorded sync rounds")
	}
}

func TestUnconfiguredEngineIsLocalMode(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	provider := fields.NewStatic(fields.Defaults())
	if err := st.InitSchema(provider.Names()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	c := cache.New(st, provider, log.New(os.Stderr, "[test] ", 0))
	if err := c.Load(); err != nil {
		t.Fatalf("failed to load cache: %v", err)
	}

	syncer := New(c, st, NewClient("", ""), log.New(os.Stderr, "[test] ", 0))
	if syncer.Configured() {
		t.Error("empty base URL should be unconfigured")
	}

	saveTask(t, c, "t1", "local only")
	if err := syncer.Upload(context.Background()); err != nil {
		t.Errorf("Upload in local mode should be a no-op, got %v", err)
	}
	if err := syncer.Download(context.Background()); err != nil {
		t.Errorf("Download in local mode should be a no-op, got %v", err)
	}
	if err := syncer.OverwriteServer(context.Background()); err == nil {
		t.Error("OverwriteServer without a remote should fail")
	}

	rows, err := st.RecentSyncLog(5)
	if err != nil {
		t.Fatalf("RecentSyncLog failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("local mode recorded audit rows: %+v", rows)
	}
}
