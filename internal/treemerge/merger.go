// Package treemerge folds duplicate-file reports into whole-directory
// duplicates.
//
// The merger receives a stream of files whose content was confirmed
// identical to at least one other file, groups them by containing
// directory, and promotes directories whose every on-disk file was
// reported up to their parents. Promotion cascades until a fixed point,
// so two directory trees that mirror each other byte for byte collapse
// into a single report at their roots.
//
// Before any file is fed, the counter pre-pass records how many regular
// files actually live under every directory prefix. A directory holding
// even one file that was never reported can therefore never be declared
// duplicate as a whole.
package treemerge

import (
	"path"
	"slices"
	"strings"

	"github.com/michaelcinquin/dirdup/internal/counter"
	"github.com/michaelcinquin/dirdup/internal/pathtrie"
	"github.com/michaelcinquin/dirdup/internal/scanner"
)

// Config configures the counter pre-pass run by New.
type Config struct {
	Paths        []string      // Root paths of the scan set
	Flags        scanner.Flags // Traversal flags, passed through to the walker
	Workers      int
	ShowProgress bool
	ErrCh        chan error // Non-fatal walk errors; may be nil
}

// Merger folds duplicate-file reports into duplicate directories.
//
// The merger is single-threaded and not reentrant: Feed calls must arrive
// from one goroutine, and Finish must follow the last Feed.
type Merger struct {
	dirTree   *pathtrie.Tree[*Directory] // Live aggregates by path
	counts    *pathtrie.Tree[int]        // Directory prefix → on-disk file count
	buckets   map[uint64][]*Directory    // Complete directories by fingerprint
	validDirs []*Directory               // Working set for the next promotion pass
	groups    []Group
	done      bool
}

// New creates a Merger and runs the counter pre-pass over cfg.Paths.
// Construction fails if no paths are given or a root cannot be stat'ed;
// errors inside the walk are non-fatal and go to cfg.ErrCh.
func New(cfg Config) (*Merger, error) {
	counts, err := counter.New(cfg.Paths, counter.Options{
		Flags:        cfg.Flags,
		Workers:      cfg.Workers,
		ShowProgress: cfg.ShowProgress,
		ErrCh:        cfg.ErrCh,
	}).Run()
	if err != nil {
		return nil, err
	}
	return NewFromCounts(counts), nil
}

// NewFromCounts creates a Merger over an existing count table. Embedding
// point for callers that already walked the roots.
func NewFromCounts(counts *pathtrie.Tree[int]) *Merger {
	return &Merger{
		dirTree: pathtrie.New[*Directory](),
		counts:  counts,
		buckets: make(map[uint64][]*Directory),
	}
}

// Feed assigns one duplicate-file report to its containing directory,
// creating the aggregate on first contact. A directory whose on-disk file
// count is reached becomes a candidate result immediately.
//
// A parent missing from the count table resolves to an expected count of
// zero; such a directory can never complete and is harmless.
func (m *Merger) Feed(f *FileReport) {
	dirname := path.Dir(f.Path)

	d, ok := m.dirTree.Lookup(dirname)
	if !ok {
		expected, _ := m.counts.Lookup(dirname)
		d = newDirectory(dirname, expected)
		m.dirTree.Insert(dirname, d)
		m.validDirs = append(m.validDirs, d)
	}

	d.add(f)

	if d.complete() {
		m.insertResult(d)
	}
}

// insertResult files a complete directory into the result grouping under
// its fingerprint. Collision disambiguation happens at extraction.
func (m *Merger) insertResult(d *Directory) {
	m.buckets[d.fingerprint] = append(m.buckets[d.fingerprint], d)
}

// Finish runs promotion passes until no directory is newly completed,
// then extracts the equivalence classes. Calling Finish again returns the
// same groups without re-merging.
//
// Each pass levels every directory in the working set up by one: its files
// are added to the parent aggregate (created on demand with its own count
// from the counter) and the directory is recorded as the parent's child.
// Parents created during a pass that turn out complete form the next
// working set; a parent that is not complete now never will be at a higher
// level either, since its files did not all arrive as duplicates.
//
// Passes process the working set deepest-first (path as tie-break) so a
// directory holding both direct files and promoted children hands the
// union to its own parent, independent of the order reports were fed.
func (m *Merger) Finish() []Group {
	if m.done {
		return m.groups
	}
	m.done = true

	for len(m.validDirs) > 0 {
		slices.SortFunc(m.validDirs, func(a, b *Directory) int {
			if d := pathDepth(b.path) - pathDepth(a.path); d != 0 {
				return d
			}
			return strings.Compare(a.path, b.path)
		})

		var newDirs []*Directory
		for _, d := range m.validDirs {
			if d.path == "/" {
				continue // Nothing to promote to
			}
			parentPath := path.Dir(d.path)

			parent, ok := m.dirTree.Lookup(parentPath)
			if !ok {
				expected, _ := m.counts.Lookup(parentPath)
				parent = newDirectory(parentPath, expected)
				m.dirTree.Insert(parentPath, parent)
				newDirs = append(newDirs, parent)
			}

			for _, f := range d.files {
				parent.add(f)
			}
			parent.children = append(parent.children, d)
		}

		// Keep the leveled-up directories that are full now.
		m.validDirs = m.validDirs[:0]
		for _, d := range newDirs {
			if d.complete() {
				m.validDirs = append(m.validDirs, d)
				m.insertResult(d)
			}
		}
	}

	m.groups = m.extract()
	return m.groups
}

// pathDepth is the number of separators in a path, the depth measure used
// for promotion and emission ordering.
func pathDepth(p string) int {
	return strings.Count(p, "/")
}
