package fields

import (
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStaticProvider(t *testing.T) {
	p := NewStatic([]Field{
		{Name: "text", Type: Text, Required: true},
		{Name: "due_date", Type: Date},
	})

	names := p.Names()
	if len(names) != 2 || names[0] != "text" || names[1] != "due_date" {
		t.Errorf("unexpected names: %v", names)
	}

	// Returned slices are copies.
	fs := p.Fields()
	fs[0].Name = "mutated"
	if p.Fields()[0].Name != "text" {
		t.Error("mutating returned fields leaked into provider")
	}
}

func TestDefaultsIncludeText(t *testing.T) {
	var hasText bool
	for _, f := range Defaults() {
		if f.Name == "text" {
			hasText = true
			if !f.Required {
				t.Error("text field should be required")
			}
		}
	}
	if !hasText {
		t.Error("defaults missing the text field")
	}
}

func writeSchema(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write schema file: %v", err)
	}
}

func TestFileProviderLoadsDeclaredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeSchema(t, path, `
task_fields:
  - name: text
    label: Task
    type: text
    required: true
  - name: context
    label: Context
    type: enum
    options: [home, work]
`)

	p, err := NewFileProvider(path, log.New(os.Stderr, "[test] ", 0))
	if err != nil {
		t.Fatalf("NewFileProvider failed: %v", err)
	}
	defer p.Close()

	names := p.Names()
	if len(names) != 2 || names[0] != "text" || names[1] != "context" {
		t.Fatalf("unexpected names: %v", names)
	}

	fs := p.Fields()
	if fs[1].Type != Enum || len(fs[1].Options) != 2 {
		t.Errorf("enum field not parsed: %+v", fs[1])
	}
}

func TestFileProviderFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	p, err := NewFileProvider(path, log.New(os.Stderr, "[test] ", 0))
	if err != nil {
		t.Fatalf("NewFileProvider failed: %v", err)
	}
	defer p.Close()

	if got, want := len(p.Names()), len(Defaults()); got != want {
		t.Errorf("expected default schema (%d fields), got %d", want, got)
	}
}

func TestFileProviderReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeSchema(t, path, "task_fields:\n  - name: text\n")

	p, err := NewFileProvider(path, log.New(os.Stderr, "[test] ", 0))
	if err != nil {
		t.Fatalf("NewFileProvider failed: %v", err)
	}
	defer p.Close()

	if names := p.Names(); len(names) != 1 {
		t.Fatalf("unexpected initial schema: %v", names)
	}

	writeSchema(t, path, "task_fields:\n  - name: text\n  - name: mood\n")

	deadline := time.Now().Add(3 * time.Second)
	for {
		if len(p.Names()) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("schema never reloaded, still %v", p.Names())
		}
		time.Sleep(20 * time.Millisecond)
	}

	names := p.Names()
	if names[1] != "mood" {
		t.Errorf("unexpected reloaded schema: %v", names)
	}
}
