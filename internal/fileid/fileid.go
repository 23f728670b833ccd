// Package fileid normalizes document paths so every component agrees on a document's identity.
package fileid

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path does not live under the vault root.
var ErrOutsideRoot = errors.New("path is outside the vault")

// Normalize returns the canonical form of a vault-relative document path:
// slash-separated, cleaned, without a leading "./" or "/".
// Same document always yields the same string. Returns "" for the vault root itself.
func Normalize(p string) string {
	p = strings.ReplaceAll(filepath.ToSlash(p), "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	return p
}

// Relative converts an absolute file path under root into a normalized document path.
func Relative(root, absolutePath string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(absolutePath))
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return Normalize(rel), nil
}

// Absolute resolves a document path against root. Paths that would escape root are rejected.
func Absolute(root, docPath string) (string, error) {
	n := Normalize(docPath)
	if n == "" {
		return "", ErrOutsideRoot
	}
	return filepath.Join(root, filepath.FromSlash(n)), nil
}
