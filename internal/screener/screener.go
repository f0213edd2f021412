// Package screener screens scanned files to find duplicate candidates.
//
// The screener is the cheap filtering stage between the scan and the
// hasher: files are grouped by size, and only groups with two or more
// members survive. Different sizes cannot have identical content, so this
// eliminates most files without any I/O.
package screener

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelcinquin/dirdup/internal/progress"
	"github.com/michaelcinquin/dirdup/internal/types"
)

// Screener screens files by size to find potential duplicates.
//
// The screener is designed for single-use: create with New(), call Run() once.
type Screener struct {
	files        []*types.FileInfo
	showProgress bool
}

// New creates a Screener for finding duplicate candidates.
func New(files []*types.FileInfo, showProgress bool) *Screener {
	return &Screener{files: files, showProgress: showProgress}
}

// stats tracks screening progress.
type stats struct {
	candidateFiles int
	candidateBytes int64
	startTime      time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Selected %d candidates (%s) in %.1fs",
		s.candidateFiles, humanize.IBytes(uint64(s.candidateBytes)),
		time.Since(s.startTime).Seconds())
}

// Run screens files and returns candidate groups, one per file size with
// 2+ members. Group order is unspecified; the hasher does not depend on it.
func (s *Screener) Run() [][]*types.FileInfo {
	bar := progress.New(s.showProgress, -1)
	st := &stats{startTime: time.Now()}

	bySize := make(map[int64][]*types.FileInfo)
	for _, f := range s.files {
		bySize[f.Size] = append(bySize[f.Size], f)
	}

	var result [][]*types.FileInfo
	for _, group := range bySize {
		if len(group) >= 2 {
			result = append(result, group)
			st.candidateFiles += len(group)
			st.candidateBytes += group[0].Size * int64(len(group))
		}
	}

	bar.Finish(st)
	return result
}
