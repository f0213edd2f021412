package treemerge

import (
	"slices"
	"strings"
)

// Group is one emitted equivalence class: directories whose entire file
// contents are byte-identical. Paths are ordered shallowest first.
type Group struct {
	Fingerprint uint64
	Paths       []string
}

// extract turns the result buckets into ordered groups.
//
// Fingerprint buckets are first partitioned by exact digest-set equality,
// so a fingerprint collision never groups unequal directories. Classes
// with fewer than two members are dropped. Classes are emitted shallowest
// first; a directory whose ancestor was already emitted is suppressed,
// along with everything promoted into it.
func (m *Merger) extract() []Group {
	var classes [][]*Directory
	for _, bucket := range m.buckets {
		for _, class := range partition(bucket) {
			if len(class) >= 2 {
				classes = append(classes, class)
			}
		}
	}

	// Members shallowest first; path as tie-break keeps the output
	// independent of feed order.
	for _, class := range classes {
		slices.SortStableFunc(class, byDepthThenPath)
	}

	// Classes with shallow members go first so that ancestors are emitted
	// before anything living below them.
	slices.SortFunc(classes, func(a, b []*Directory) int {
		return byDepthThenPath(a[0], b[0])
	})

	var groups []Group
	for _, class := range classes {
		var paths []string
		for _, d := range class {
			if d.finished {
				continue
			}
			d.markFinished()
			paths = append(paths, d.path)
		}
		if len(paths) > 0 {
			groups = append(groups, Group{Fingerprint: class[0].fingerprint, Paths: paths})
		}
	}
	return groups
}

// partition splits one fingerprint bucket into classes of directories that
// are pairwise equal under the full digest-set comparison.
func partition(bucket []*Directory) [][]*Directory {
	var classes [][]*Directory
outer:
	for _, d := range bucket {
		for i, class := range classes {
			if class[0].equal(d) {
				classes[i] = append(class, d)
				continue outer
			}
		}
		classes = append(classes, []*Directory{d})
	}
	return classes
}

func byDepthThenPath(a, b *Directory) int {
	if d := pathDepth(a.path) - pathDepth(b.path); d != 0 {
		return d
	}
	return strings.Compare(a.path, b.path)
}
