// Package counter builds the per-directory file count table for the merger.
//
// The merger can only declare a directory duplicate when every file that
// exists under it was reported as a duplicate, so it has to know how many
// regular files each directory holds on disk - including files the rest of
// the pipeline filtered out or never matched. The counter therefore walks
// the root paths once, unfiltered, before any merging happens.
//
// Counting runs in two steps: every regular file path is first inserted
// into a scratch trie (which also deduplicates files reachable from
// overlapping roots), then each stored path is ascended separator by
// separator, incrementing the count of every directory prefix. The file
// name itself is never registered as a directory.
package counter

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/michaelcinquin/dirdup/internal/pathtrie"
	"github.com/michaelcinquin/dirdup/internal/scanner"
)

// ErrNoPaths is returned when no root paths are supplied.
var ErrNoPaths = errors.New("no root paths given")

// Options control the counting walk. Flags are passed through to the
// scanner unchanged; size and exclude filters are deliberately absent.
type Options struct {
	Flags        scanner.Flags
	Workers      int
	ShowProgress bool
	ErrCh        chan error // Non-fatal walk errors; may be nil
}

// Counter produces the directory-prefix → transitive-file-count table.
//
// The counter is designed for single-use: create with New(), call Run() once.
type Counter struct {
	paths []string
	opts  Options
}

// New creates a Counter over the given root paths.
func New(paths []string, opts Options) *Counter {
	return &Counter{paths: paths, opts: opts}
}

// Run walks the roots and returns the count table. Every directory prefix
// of every regular file found is a key; the value is the number of regular
// files living transitively under that prefix.
func (c *Counter) Run() (*pathtrie.Tree[int], error) {
	if len(c.paths) == 0 {
		return nil, ErrNoPaths
	}

	// Root paths must exist; a missing root means the counts would be
	// silently wrong, which the merger cannot recover from.
	for _, p := range c.paths {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("open root: %w", err)
		}
	}

	files := scanner.New(c.paths, scanner.Options{
		Flags:        c.opts.Flags,
		Workers:      c.opts.Workers,
		ShowProgress: c.opts.ShowProgress,
		ErrCh:        c.opts.ErrCh,
	}).Run()

	// Scratch trie of full file paths. Joining it into the directory table
	// afterwards deduplicates files seen through more than one root.
	fileTree := pathtrie.New[struct{}]()
	for _, f := range files {
		fileTree.Insert(f.Path, struct{}{})
	}

	counts := pathtrie.New[int]()
	fileTree.Walk(func(p string, _ struct{}) bool {
		ascend(counts, p)
		return true
	})
	return counts, nil
}

// ascend increments the count of every directory prefix of file. The walk
// starts at the file's parent so the file name itself never becomes a
// directory entry; the root prefix is registered as "/".
func ascend(counts *pathtrie.Tree[int], file string) {
	for d := path.Dir(file); ; d = path.Dir(d) {
		old, _ := counts.Lookup(d)
		counts.Insert(d, old+1)
		if d == "/" || d == "." {
			return
		}
	}
}
