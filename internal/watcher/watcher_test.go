package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/notevec/internal/models"
	"github.com/hyperjump/notevec/internal/vault"
)

func newVault(t *testing.T, dir string, recursive bool) *vault.Vault {
	t.Helper()
	v, err := vault.New(dir, []string{".txt", ".md"}, recursive)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func startWatcher(t *testing.T, v Vault) *Watcher {
	t.Helper()
	w := NewWatcher(v)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

// collect reads events until want matches or the timeout expires.
func collect(t *testing.T, w *Watcher, timeout time.Duration, want func([]models.DocumentEvent) bool) []models.DocumentEvent {
	t.Helper()
	var got []models.DocumentEvent
	deadline := time.After(timeout)
	for {
		if want(got) {
			return got
		}
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-deadline:
			return got
		}
	}
}

func has(events []models.DocumentEvent, op models.EventOp, path string) bool {
	for _, ev := range events {
		if ev.Op == op && ev.Path == path {
			return true
		}
	}
	return false
}

func TestWatcher_ModifyAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := mkdirAll(sub); err != nil {
		t.Fatal(err)
	}
	w := startWatcher(t, newVault(t, dir, true))

	if err := writeFile(filepath.Join(sub, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(sub, "f.txt"), "hello"); err != nil {
		t.Fatal(err)
	}

	events := collect(t, w, 2*time.Second, func(evs []models.DocumentEvent) bool {
		return has(evs, models.EventModify, "sub/f.txt")
	})
	if !has(events, models.EventModify, "sub/f.txt") {
		t.Fatalf("expected modify for sub/f.txt, got %v", events)
	}
	for _, ev := range events {
		if ev.Path == "sub/ignore.xyz" {
			t.Errorf("unsupported extension should be ignored: %v", ev)
		}
	}
}

func TestWatcher_RemoveEmitsDelete(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.md")
	if err := writeFile(file, "hello"); err != nil {
		t.Fatal(err)
	}
	w := startWatcher(t, newVault(t, dir, true))

	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}
	events := collect(t, w, 2*time.Second, func(evs []models.DocumentEvent) bool {
		return has(evs, models.EventDelete, "a.md")
	})
	if !has(events, models.EventDelete, "a.md") {
		t.Errorf("expected delete for a.md, got %v", events)
	}
}

func TestWatcher_RenameEmitsDeleteThenModify(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.md")
	if err := writeFile(oldPath, "hello"); err != nil {
		t.Fatal(err)
	}
	w := startWatcher(t, newVault(t, dir, true))

	if err := os.Rename(oldPath, filepath.Join(dir, "new.md")); err != nil {
		t.Fatal(err)
	}
	events := collect(t, w, 2*time.Second, func(evs []models.DocumentEvent) bool {
		return has(evs, models.EventDelete, "old.md") && has(evs, models.EventModify, "new.md")
	})
	if !has(events, models.EventDelete, "old.md") || !has(events, models.EventModify, "new.md") {
		t.Errorf("expected delete old.md and modify new.md, got %v", events)
	}
}

func TestWatcher_HandleNewDirectory_emitsFilesInNewFolder(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, newVault(t, dir, true))

	// Simulate copying a folder with files into the watched directory
	staging := filepath.Join(t.TempDir(), "new-folder")
	if err := mkdirAll(filepath.Join(staging, "level2")); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(staging, "doc1.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(staging, "level2", "deep.md"), "deep content"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(staging, "ignore.xyz"), "skip"); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(staging, filepath.Join(dir, "new-folder")); err != nil {
		t.Skipf("cannot move across temp directories: %v", err)
	}

	events := collect(t, w, 2*time.Second, func(evs []models.DocumentEvent) bool {
		return has(evs, models.EventModify, "new-folder/doc1.txt") && has(evs, models.EventModify, "new-folder/level2/deep.md")
	})
	if !has(events, models.EventModify, "new-folder/doc1.txt") || !has(events, models.EventModify, "new-folder/level2/deep.md") {
		t.Errorf("expected both files of the new folder, got %v", events)
	}
	for _, ev := range events {
		if ev.Path == "new-folder/ignore.xyz" {
			t.Error("ignore.xyz should not be emitted")
		}
	}

	// files created later in the new subfolder are watched too
	if err := writeFile(filepath.Join(dir, "new-folder", "level2", "later.md"), "later"); err != nil {
		t.Fatal(err)
	}
	events = collect(t, w, 2*time.Second, func(evs []models.DocumentEvent) bool {
		return has(evs, models.EventModify, "new-folder/level2/later.md")
	})
	if !has(events, models.EventModify, "new-folder/level2/later.md") {
		t.Errorf("expected modify for later.md, got %v", events)
	}
}

func TestWatcher_SkipsHiddenDirectories(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".obsidian")
	if err := mkdirAll(hidden); err != nil {
		t.Fatal(err)
	}
	w := startWatcher(t, newVault(t, dir, true))

	if err := writeFile(filepath.Join(hidden, "workspace.md"), "x"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "visible.md"), "y"); err != nil {
		t.Fatal(err)
	}
	events := collect(t, w, 2*time.Second, func(evs []models.DocumentEvent) bool {
		return has(evs, models.EventModify, "visible.md")
	})
	for _, ev := range events {
		if ev.Path == ".obsidian/workspace.md" {
			t.Errorf("hidden directory should not be watched: %v", ev)
		}
	}
	for _, d := range w.Directories() {
		if d == hidden {
			t.Error("hidden directory should not be in the watch list")
		}
	}
}

func TestWatcher_NonRecursiveWatchesRootOnly(t *testing.T) {
	dir := t.TempDir()
	if err := mkdirAll(filepath.Join(dir, "sub")); err != nil {
		t.Fatal(err)
	}
	w := startWatcher(t, newVault(t, dir, false))
	if dirs := w.Directories(); len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "watch", "me")
	v := newVault(t, root, true)
	startWatcher(t, v)

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_StopClosesEvents(t *testing.T) {
	w := startWatcher(t, newVault(t, t.TempDir(), true))
	w.Stop()
	select {
	case _, ok := <-w.Events():
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Error("events channel not closed after Stop")
	}
}

func TestDocumentPath(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(newVault(t, dir, true))
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{filepath.Join(dir, "a.md"), "a.md", true},
		{filepath.Join(dir, "sub", "b.md"), "sub/b.md", true},
		{filepath.Join(dir, ".git", "c.md"), "", false},
		{filepath.Join(dir, ".hidden.md"), ".hidden.md", true},
		{dir, "", false},
		{filepath.Join(filepath.Dir(dir), "outside.md"), "", false},
	}
	for _, tt := range tests {
		got, ok := w.documentPath(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("documentPath(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
