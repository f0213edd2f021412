// Package testfs sows directory trees for tests from a declarative spec.
//
// Tests describe the filesystem they need as a Tree and get back the
// temporary root it was created under:
//
//	root := testfs.Sow(t, testfs.Tree{
//	    Files: []testfs.File{
//	        {Path: "a/x.txt", Pattern: 'A', Size: "1KiB"},
//	        {Path: "b/x.txt", Pattern: 'A', Size: "1KiB"},
//	    },
//	})
//
// Files with the same Pattern and Size are byte-identical duplicates.
// Parent directories are created automatically (mkdir -p semantics).
package testfs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dustin/go-humanize"
)

// File describes one regular file, relative to the tree root.
type File struct {
	Path    string
	Pattern byte   // Content byte, repeated Size times
	Size    string // Human-readable size ("512", "1KiB"); empty means 16 bytes
}

// Symlink describes one symbolic link, relative to the tree root.
type Symlink struct {
	Path   string
	Target string // Stored verbatim; relative targets resolve at the link
}

// Tree is a declarative filesystem specification.
type Tree struct {
	Files    []File
	Symlinks []Symlink
}

// Sow creates the tree under t.TempDir() and returns the root path.
// Cleanup is handled by t.TempDir itself.
func Sow(t *testing.T, tree Tree) string {
	t.Helper()

	root := t.TempDir()
	if err := sow(root, tree); err != nil {
		t.Fatalf("sow tree: %v", err)
	}
	return root
}

func sow(root string, tree Tree) error {
	for _, f := range tree.Files {
		full := filepath.Join(root, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create dirs for %s: %w", f.Path, err)
		}
		content, err := fileContent(f)
		if err != nil {
			return fmt.Errorf("content for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(full, content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}

	for _, l := range tree.Symlinks {
		full := filepath.Join(root, filepath.FromSlash(l.Path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create dirs for %s: %w", l.Path, err)
		}
		if err := os.Symlink(l.Target, full); err != nil {
			return fmt.Errorf("link %s: %w", l.Path, err)
		}
	}

	return nil
}

func fileContent(f File) ([]byte, error) {
	pattern := f.Pattern
	if pattern == 0 {
		pattern = 'x'
	}
	size := uint64(16)
	if f.Size != "" {
		parsed, err := humanize.ParseBytes(f.Size)
		if err != nil {
			return nil, err
		}
		size = parsed
	}
	return bytes.Repeat([]byte{pattern}, int(size)), nil
}
