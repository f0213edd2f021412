package screener

import (
	"testing"

	"github.com/michaelcinquin/dirdup/internal/types"
)

// TestSizeGrouping tests that only same-size files group together.
func TestSizeGrouping(t *testing.T) {
	files := []*types.FileInfo{
		{Path: "/a.txt", Size: 100},
		{Path: "/b.txt", Size: 100},
		{Path: "/c.txt", Size: 200}, // Different size
	}

	groups := New(files, false).Run()

	if len(groups) != 1 {
		t.Fatalf("expected 1 candidate group, got %d", len(groups))
	}
	if len(groups[0]) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(groups[0]))
	}
	for _, f := range groups[0] {
		if f.Size != 100 {
			t.Errorf("unexpected size %d in group", f.Size)
		}
	}
}

// TestSingletonsFiltered tests that unique sizes never become candidates.
func TestSingletonsFiltered(t *testing.T) {
	files := []*types.FileInfo{
		{Path: "/a.txt", Size: 1},
		{Path: "/b.txt", Size: 2},
		{Path: "/c.txt", Size: 3},
	}

	if groups := New(files, false).Run(); len(groups) != 0 {
		t.Errorf("expected no candidate groups, got %d", len(groups))
	}
}

// TestEmptyInput tests screening with no files.
func TestEmptyInput(t *testing.T) {
	if groups := New(nil, false).Run(); len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}
