// Package scanner provides parallel filesystem traversal for dirdup.
//
// The scanner uses the fan-out/fan-in model: one walker goroutine per
// discovered directory, concurrency limited by a semaphore, and a single
// collector goroutine draining the result channel. Both the candidate scan
// and the counter pre-pass run on this walker; they differ only in the
// Options they pass.
//
// Coordination sequence in Run:
//  1. Start collector goroutine (drains resultCh into a slice)
//  2. Spawn a walker per root path (fan-out begins)
//  3. Wait for all walkers (walkerWg.Wait)
//  4. Close resultCh to signal the collector
//  5. Wait for the collector, return aggregated results
package scanner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelcinquin/dirdup/internal/progress"
	"github.com/michaelcinquin/dirdup/internal/types"
)

// Flags is a bitmask of traversal behaviors, mirroring the walker flags of
// the counter contract.
type Flags uint

const (
	// FollowSymlinks walks into symlinked directories and reports symlinked
	// regular files (logical traversal). Default is physical traversal.
	FollowSymlinks Flags = 1 << iota
	// OneFilesystem does not cross mount points below a root path.
	OneFilesystem
	// SkipHidden skips dot-prefixed files and directories.
	SkipHidden
)

// Options control one scan run.
type Options struct {
	MinSize      int64      // Minimum file size filter (bytes); 0 keeps everything
	Excludes     []string   // Glob patterns for basename exclusion
	Flags        Flags      // Traversal behavior
	Workers      int        // Max concurrent directory reads
	ShowProgress bool       // Whether to display a progress spinner
	ErrCh        chan error // Non-fatal errors (permission denied, etc.); may be nil
}

// Scanner discovers regular files under a set of root paths.
//
// The scanner is designed for single-use: create with New(), call Run() once.
type Scanner struct {
	paths []string
	opts  Options

	walkerWg  sync.WaitGroup
	walkerSem types.Semaphore
	resultCh  chan *types.FileInfo
	visited   sync.Map // dev/ino of walked dirs, guards symlink loops
	stats     *stats
	bar       *progress.Bar
}

// New creates a Scanner over the given root paths.
func New(paths []string, opts Options) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Scanner{paths: paths, opts: opts}
}

// stats tracks scanning progress using atomic counters so walkers never
// contend on a lock.
type stats struct {
	scannedFiles atomic.Int64
	matchedFiles atomic.Int64
	scannedBytes atomic.Int64
	matchedBytes atomic.Int64
	startTime    time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Scanned %d (%s), matched %d files (%s) in %.1fs",
		s.scannedFiles.Load(), humanize.IBytes(uint64(s.scannedBytes.Load())),
		s.matchedFiles.Load(), humanize.IBytes(uint64(s.matchedBytes.Load())),
		time.Since(s.startTime).Seconds())
}

// Run executes the scan and returns matching files.
func (s *Scanner) Run() []*types.FileInfo {
	s.walkerSem = types.NewSemaphore(s.opts.Workers)
	s.bar = progress.New(s.opts.ShowProgress, -1)
	s.stats = &stats{startTime: time.Now()}
	s.bar.Describe(s.stats)
	s.resultCh = make(chan *types.FileInfo, 1000) // Buffer smooths producer/consumer rates

	var results []*types.FileInfo
	collectorWg := sync.WaitGroup{}

	collectorWg.Add(1)
	go func() {
		for r := range s.resultCh {
			results = append(results, r)
		}
		collectorWg.Done()
	}()

	for _, p := range s.paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			s.sendError(err)
			continue
		}
		info, err := os.Stat(absPath)
		if err != nil {
			s.sendError(err)
			continue
		}
		rootDev, rootIno := devIno(info)
		// Overlapping roots walk the same tree twice; claim each root in the
		// visited set so a root reachable from another root is skipped.
		if _, seen := s.visited.LoadOrStore([2]uint64{rootDev, rootIno}, struct{}{}); seen {
			continue
		}
		s.walkDirectory(absPath, rootDev)
	}

	s.walkerWg.Wait()
	close(s.resultCh)
	collectorWg.Wait()

	s.bar.Finish(s.stats)
	return results
}

// walkDirectory spawns a goroutine to process one directory and recursively
// spawn children. walkerWg is incremented BEFORE the spawn to prevent a race
// with Wait; the semaphore is released after listing but before spawning
// children so children can acquire while the parent filters files.
func (s *Scanner) walkDirectory(dir string, rootDev uint64) {
	s.walkerWg.Add(1)
	go func() {
		defer s.walkerWg.Done()

		s.walkerSem.Acquire()
		files, subdirs, err := s.listDirectory(dir, rootDev)
		s.walkerSem.Release()
		if err != nil {
			s.sendError(err)
			return
		}

		for _, f := range files {
			s.stats.scannedFiles.Add(1)
			s.stats.scannedBytes.Add(f.Size)
			if f.Size >= s.opts.MinSize && !s.shouldExclude(f.Path) {
				s.resultCh <- f
				s.stats.matchedFiles.Add(1)
				s.stats.matchedBytes.Add(f.Size)
			}
		}
		s.bar.Describe(s.stats)

		for _, sub := range subdirs {
			s.walkDirectory(sub, rootDev)
		}
	}()
}

// listDirectory reads a single directory, returning files and subdirectories.
// This is the only place directory I/O occurs, protected by walkerSem.
// ReadDir runs in batches of 1000 entries to bound memory on huge directories.
func (s *Scanner) listDirectory(dirPath string, rootDev uint64) (files []*types.FileInfo, subdirs []string, err error) {
	dir, err := os.Open(dirPath)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = dir.Close() }()

	const batchSize = 1000
	for {
		entries, err := dir.ReadDir(batchSize)
		if len(entries) == 0 {
			if err != nil && err != io.EOF {
				return files, subdirs, err
			}
			break
		}

		for _, entry := range entries {
			f, sub := s.processEntry(dirPath, entry, rootDev)
			if f != nil {
				files = append(files, f)
			}
			if sub != "" {
				subdirs = append(subdirs, sub)
			}
		}
	}

	return files, subdirs, nil
}

// processEntry classifies one directory entry. Returns (nil, "") for entries
// that are skipped (non-regular files, excluded or crossed-over directories).
func (s *Scanner) processEntry(dirPath string, entry os.DirEntry, rootDev uint64) (file *types.FileInfo, subdir string) {
	name := entry.Name()
	if s.opts.Flags&SkipHidden != 0 && strings.HasPrefix(name, ".") {
		return nil, ""
	}

	fullPath := filepath.Join(dirPath, name)

	mode := entry.Type()
	if mode&os.ModeSymlink != 0 {
		if s.opts.Flags&FollowSymlinks == 0 {
			return nil, ""
		}
		// Logical traversal: classify by the link target.
		info, err := os.Stat(fullPath)
		if err != nil {
			return nil, "" // Dangling link
		}
		if info.IsDir() {
			return nil, s.enterDir(fullPath, info, rootDev)
		}
		if info.Mode().IsRegular() {
			return newFileInfo(fullPath, info), ""
		}
		return nil, ""
	}

	if entry.IsDir() {
		info, err := entry.Info()
		if err != nil {
			return nil, ""
		}
		return nil, s.enterDir(fullPath, info, rootDev)
	}

	if !mode.IsRegular() {
		return nil, ""
	}

	// Info() may trigger an additional stat call (platform-dependent)
	info, err := entry.Info()
	if err != nil {
		return nil, "" // Skip files we can't stat (race condition, permissions)
	}

	return newFileInfo(fullPath, info), ""
}

// enterDir decides whether a directory is walked, enforcing OneFilesystem
// and deduplicating already-visited directories (guards symlink loops and
// overlapping roots).
func (s *Scanner) enterDir(fullPath string, info os.FileInfo, rootDev uint64) string {
	if s.shouldExclude(fullPath) {
		return ""
	}
	dev, ino := devIno(info)
	if s.opts.Flags&OneFilesystem != 0 && dev != rootDev {
		return ""
	}
	if _, seen := s.visited.LoadOrStore([2]uint64{dev, ino}, struct{}{}); seen {
		return ""
	}
	return fullPath
}

// sendError sends an error to the errors channel if one is configured.
func (s *Scanner) sendError(err error) {
	if s.opts.ErrCh != nil {
		s.opts.ErrCh <- err
	}
}

// shouldExclude checks if a path matches any glob exclude pattern.
func (s *Scanner) shouldExclude(path string) bool {
	if len(s.opts.Excludes) == 0 {
		return false
	}
	base := filepath.Base(path)
	for _, pattern := range s.opts.Excludes {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
