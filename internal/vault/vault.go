// Package vault lists and reads the text documents under the notes directory.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/notevec/internal/fileid"
)

// ErrUnsupported is returned when a path is not a document of the vault.
var ErrUnsupported = errors.New("not a vault document")

// Vault is a directory of notes. Document paths are normalized and relative to Root.
type Vault struct {
	root       string
	extensions []string
	recursive  bool
}

// New creates a vault rooted at dir. Only files whose extension is in extensions are documents.
func New(dir string, extensions []string, recursive bool) (*Vault, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	return &Vault{root: abs, extensions: extensions, recursive: recursive}, nil
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string {
	return v.root
}

// Extensions returns the supported file extensions.
func (v *Vault) Extensions() []string {
	return v.extensions
}

// Recursive reports whether subdirectories are part of the vault.
func (v *Vault) Recursive() bool {
	return v.recursive
}

// Supports reports whether docPath has a supported extension.
func (v *Vault) Supports(docPath string) bool {
	return ExtensionAllowed(filepath.Ext(docPath), v.extensions)
}

// List returns every supported document in a stable (lexical) order.
// Hidden directories such as .git or .obsidian are skipped.
func (v *Vault) List(ctx context.Context) ([]string, error) {
	info, err := os.Stat(v.root)
	if err != nil {
		return nil, fmt.Errorf("stat vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", v.root)
	}

	var docs []string
	err = filepath.WalkDir(v.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path == v.root {
				return nil
			}
			if !v.recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !v.Supports(path) {
			return nil
		}
		// Resolve symlinks so we only list regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		rel, relErr := fileid.Relative(v.root, path)
		if relErr != nil {
			return nil
		}
		docs = append(docs, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(docs)
	return docs, nil
}

// Read returns the content of a document. Paths List would never return, such as
// unsupported extensions or files under hidden directories, fail with ErrUnsupported.
func (v *Vault) Read(docPath string) (string, error) {
	abs, err := fileid.Absolute(v.root, docPath)
	if err != nil {
		return "", err
	}
	if err := v.check(fileid.Normalize(docPath)); err != nil {
		return "", err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", docPath, err)
	}
	return string(content), nil
}

func (v *Vault) check(docPath string) error {
	if !v.Supports(docPath) {
		return fmt.Errorf("%w: %s: extension not in %v", ErrUnsupported, docPath, v.extensions)
	}
	dirs := strings.Split(docPath, "/")
	dirs = dirs[:len(dirs)-1]
	if len(dirs) > 0 && !v.recursive {
		return fmt.Errorf("%w: %s: vault is not recursive", ErrUnsupported, docPath)
	}
	for _, d := range dirs {
		if strings.HasPrefix(d, ".") {
			return fmt.Errorf("%w: %s: hidden directory", ErrUnsupported, docPath)
		}
	}
	return nil
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and the leading dot.
// An empty allowed list accepts every extension.
func ExtensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
