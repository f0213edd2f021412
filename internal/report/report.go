// Package report renders merge results as a line-oriented text stream.
//
// Each equivalence class prints one line per directory, fingerprint in hex
// followed by the path, and a "--" separator closes the class:
//
//	9f2c41d08a33e7b1 /backups/2019/photos
//	9f2c41d08a33e7b1 /media/photos
//	--
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/michaelcinquin/dirdup/internal/treemerge"
)

// Write renders groups to w in emission order.
func Write(w io.Writer, groups []treemerge.Group) error {
	for _, g := range groups {
		for _, p := range g.Paths {
			if _, err := fmt.Fprintf(w, "%x %s\n", g.Fingerprint, escapePath(p)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, "--"); err != nil {
			return err
		}
	}
	return nil
}

// Summary describes one merge run for the final status line.
type Summary struct {
	Groups      int
	Directories int
}

// Summarize tallies the emitted groups.
func Summarize(groups []treemerge.Group) Summary {
	s := Summary{Groups: len(groups)}
	for _, g := range groups {
		s.Directories += len(g.Paths)
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("Found %d duplicate directories in %d groups", s.Directories, s.Groups)
}

// escapePath escapes control characters in paths for safe terminal output.
func escapePath(path string) string {
	r := strings.NewReplacer(
		"\t", "\\t",
		"\n", "\\n",
		"\r", "\\r",
	)
	return r.Replace(path)
}
