//go:build unix

package hasher

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/michaelcinquin/dirdup/internal/cache"
	"github.com/michaelcinquin/dirdup/internal/scanner"
	"github.com/michaelcinquin/dirdup/internal/testfs"
	"github.com/michaelcinquin/dirdup/internal/types"
)

// noCache is a disabled cache for tests (cache.Open("") returns no-op cache).
var noCache, _ = cache.Open("")

func scanAll(t *testing.T, root string) []*types.FileInfo {
	t.Helper()
	return scanner.New([]string{root}, scanner.Options{Workers: 2}).Run()
}

// TestConfirmsIdenticalContent tests that byte-identical files form one set
// and the odd one out is dropped.
func TestConfirmsIdenticalContent(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{
			{Path: "a.txt", Pattern: 'A', Size: "1KiB"},
			{Path: "b.txt", Pattern: 'A', Size: "1KiB"},
			{Path: "c.txt", Pattern: 'C', Size: "1KiB"}, // Same size, different content
		},
	})

	files := scanAll(t, root)
	sets := New([][]*types.FileInfo{files}, 2, false, nil, noCache).Run()

	if len(sets) != 1 {
		t.Fatalf("expected 1 duplicate set, got %d", len(sets))
	}
	if len(sets[0].Digest) != 32 {
		t.Errorf("digest length = %d, want 32", len(sets[0].Digest))
	}

	var names []string
	for _, f := range sets[0].Files {
		names = append(names, filepath.Base(f.Path))
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "a.txt" || names[1] != "b.txt" {
		t.Errorf("set = %v, want [a.txt b.txt]", names)
	}
}

// TestNoDuplicates tests that all-distinct candidates produce no sets.
func TestNoDuplicates(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{
			{Path: "a.txt", Pattern: 'A', Size: "1KiB"},
			{Path: "b.txt", Pattern: 'B', Size: "1KiB"},
		},
	})

	files := scanAll(t, root)
	if sets := New([][]*types.FileInfo{files}, 2, false, nil, noCache).Run(); len(sets) != 0 {
		t.Errorf("expected no sets, got %d", len(sets))
	}
}

// TestUnreadableFileDropped tests that an unreadable candidate reports an
// error and does not poison its group.
func TestUnreadableFileDropped(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores file permissions")
	}

	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{
			{Path: "a.txt", Pattern: 'A', Size: "1KiB"},
			{Path: "b.txt", Pattern: 'A', Size: "1KiB"},
			{Path: "locked.txt", Pattern: 'A', Size: "1KiB"},
		},
	})
	if err := os.Chmod(filepath.Join(root, "locked.txt"), 0o000); err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 10)
	files := scanAll(t, root)
	sets := New([][]*types.FileInfo{files}, 2, false, errCh, noCache).Run()

	if len(sets) != 1 || len(sets[0].Files) != 2 {
		t.Fatalf("expected one set of 2, got %+v", sets)
	}
	select {
	case <-errCh:
	default:
		t.Error("expected an error for the unreadable file")
	}
}

// TestCacheRoundTrip tests that a second run is served from the cache and
// produces identical digests.
func TestCacheRoundTrip(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{
			{Path: "a.txt", Pattern: 'A', Size: "4KiB"},
			{Path: "b.txt", Pattern: 'A', Size: "4KiB"},
		},
	})
	cachePath := filepath.Join(t.TempDir(), "digests.db")

	first, err := cache.Open(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	files := scanAll(t, root)
	h := New([][]*types.FileInfo{files}, 2, false, nil, first)
	sets1 := h.Run()
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	if h.stats.cachedBytes.Load() != 0 {
		t.Error("first run should not hit the cache")
	}

	second, err := cache.Open(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = second.Close() }()
	h2 := New([][]*types.FileInfo{scanAll(t, root)}, 2, false, nil, second)
	sets2 := h2.Run()

	if h2.stats.cachedBytes.Load() == 0 {
		t.Error("second run should be served from the cache")
	}
	if len(sets1) != 1 || len(sets2) != 1 || !bytes.Equal(sets1[0].Digest, sets2[0].Digest) {
		t.Errorf("cached digest differs from computed digest")
	}
}
