package cache

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelcinquin/dirdup/internal/types"
)

func testFileInfo(path string) *types.FileInfo {
	return &types.FileInfo{
		Path:    path,
		Size:    1024,
		ModTime: time.Unix(1700000000, 0),
		Dev:     1,
		Ino:     42,
	}
}

func testDigest() []byte {
	return bytes.Repeat([]byte{0xD1}, 32)
}

// TestDisabledCache tests that an empty path yields a no-op cache.
func TestDisabledCache(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	fi := testFileInfo("/a.txt")
	if err := c.Store(fi, testDigest()); err != nil {
		t.Errorf("Store on disabled cache: %v", err)
	}
	digest, err := c.Lookup(fi)
	if err != nil || digest != nil {
		t.Errorf("Lookup on disabled cache = %v, %v; want nil, nil", digest, err)
	}
}

// TestStoreLookupRoundTrip tests persistence across close and reopen.
func TestStoreLookupRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	fi := testFileInfo("/a.txt")
	want := testDigest()

	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Store(fi, want); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	got, err := c.Lookup(fi)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Lookup = %x, want %x", got, want)
	}
}

// TestModifiedFileMisses tests that any metadata change invalidates the entry.
func TestModifiedFileMisses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	fi := testFileInfo("/a.txt")

	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Store(fi, testDigest()); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	touched := *fi
	touched.ModTime = fi.ModTime.Add(time.Second)
	if got, _ := c.Lookup(&touched); got != nil {
		t.Errorf("expected miss after mtime change, got %x", got)
	}

	resized := *fi
	resized.Size++
	if got, _ := c.Lookup(&resized); got != nil {
		t.Errorf("expected miss after size change, got %x", got)
	}
}

// TestSelfCleaning tests that entries not touched during a run do not
// survive into the next database generation.
func TestSelfCleaning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	used := testFileInfo("/used.txt")
	stale := testFileInfo("/stale.txt")

	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Store(used, testDigest())
	_ = c.Store(stale, testDigest())
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	// Second run touches only one entry.
	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Lookup(used); got == nil {
		t.Fatal("expected hit for used entry")
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	// Third run: the untouched entry is gone.
	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()
	if got, _ := c.Lookup(stale); got != nil {
		t.Error("stale entry survived self-cleaning")
	}
	if got, _ := c.Lookup(used); got == nil {
		t.Error("used entry did not survive")
	}
}
