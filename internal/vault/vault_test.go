package vault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeNote(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestVault_List(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "b.md", "b")
	writeNote(t, root, "a.txt", "a")
	writeNote(t, root, "image.png", "x")
	writeNote(t, root, "daily/2024-01-01.MD", "d")
	writeNote(t, root, ".obsidian/workspace.md", "hidden")

	v, err := New(root, []string{".md", ".txt"}, true)
	if err != nil {
		t.Fatal(err)
	}
	docs, err := v.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.txt", "b.md", "daily/2024-01-01.MD"}
	if !reflect.DeepEqual(docs, want) {
		t.Errorf("List() = %v, want %v", docs, want)
	}

	flat, _ := New(root, []string{".md", ".txt"}, false)
	docs, err = flat.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(docs, []string{"a.txt", "b.md"}) {
		t.Errorf("non-recursive List() = %v", docs)
	}
}

func TestVault_ListMissingDir(t *testing.T) {
	v, _ := New(filepath.Join(t.TempDir(), "nope"), nil, true)
	if _, err := v.List(context.Background()); err == nil {
		t.Error("expected error for missing vault")
	}
}

func TestVault_Read(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "sub/note.md", "hello")
	v, _ := New(root, nil, true)

	got, err := v.Read("./sub/note.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("Read() = %q", got)
	}
	if _, err := v.Read("sub/missing.md"); err == nil {
		t.Error("expected error for missing document")
	}
}

func TestVault_ReadRejectsNonDocuments(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, ".git/config", "[core]")
	writeNote(t, root, ".obsidian/workspace.md", "hidden")
	writeNote(t, root, "data/meta.db", "binary")
	writeNote(t, root, "sub/note.md", "hello")

	v, _ := New(root, []string{".md"}, true)
	for _, p := range []string{".git/config", ".obsidian/workspace.md", "data/meta.db"} {
		if _, err := v.Read(p); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Read(%q) err = %v, want ErrUnsupported", p, err)
		}
	}
	if _, err := v.Read("sub/note.md"); err != nil {
		t.Errorf("Read(sub/note.md): %v", err)
	}

	flat, _ := New(root, []string{".md"}, false)
	if _, err := flat.Read("sub/note.md"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("non-recursive Read(sub/note.md) err = %v, want ErrUnsupported", err)
	}
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".md", []string{"md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
		{".go", nil, true},
	}
	for _, tt := range tests {
		got := ExtensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("ExtensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}
