// Package hasher confirms duplicate candidates by content digest.
//
// Candidates arrive pre-grouped by size from the screener. A fixed worker
// pool reads each file once and computes its SHA-256; files sharing a
// digest form a duplicate set. The tree merger folds these whole-file
// digests into its directory fingerprints, so unlike a pairwise comparator
// the hasher must produce a digest for every candidate, not just decide
// equality.
//
// Digests are cached in BoltDB keyed by (path, size, inode, mtime); a
// touched file misses the cache and is re-read.
package hasher

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelcinquin/dirdup/internal/cache"
	"github.com/michaelcinquin/dirdup/internal/progress"
	"github.com/michaelcinquin/dirdup/internal/types"
)

// blockSize is the read buffer size (64KB)
const blockSize = 64 * 1024

// DuplicateSet holds files whose entire content is byte-identical.
type DuplicateSet struct {
	Digest []byte // SHA-256 of the content, shared by all files
	Files  []*types.FileInfo
}

// Hasher digests candidate files and groups confirmed duplicates.
//
// The hasher is designed for single-use: create with New(), call Run() once.
type Hasher struct {
	// Config (immutable, set by New)
	groups       [][]*types.FileInfo // Size-grouped candidates from the screener
	workers      int                 // Max concurrent file reads
	showProgress bool
	errCh        chan error   // Non-fatal errors (permission denied, etc.)
	cache        *cache.Cache // Digest cache; use cache.Open("") for disabled

	// Runtime (initialized in Run)
	bar   *progress.Bar
	stats *stats
}

// New creates a Hasher for the given candidate groups.
func New(groups [][]*types.FileInfo, workers int, showProgress bool, errCh chan error, digestCache *cache.Cache) *Hasher {
	if workers <= 0 {
		workers = 1
	}
	return &Hasher{
		groups:       groups,
		workers:      workers,
		showProgress: showProgress,
		errCh:        errCh,
		cache:        digestCache,
	}
}

// stats tracks hashing progress.
type stats struct {
	totalBytes  uint64
	hashedBytes atomic.Uint64 // read and digested
	cachedBytes atomic.Uint64 // satisfied from cache, no I/O
	dupFiles    atomic.Int64
	dupSets     atomic.Int64
	startTime   time.Time
}

func (s *stats) String() string {
	elapsed := time.Since(s.startTime).Truncate(time.Millisecond)
	hashed := s.hashedBytes.Load()
	cached := s.cachedBytes.Load()
	if cached > 0 {
		return fmt.Sprintf("Hashed %s + cached %s of %s, confirmed %d duplicates in %d sets in %v",
			humanize.IBytes(hashed), humanize.IBytes(cached), humanize.IBytes(s.totalBytes),
			s.dupFiles.Load(), s.dupSets.Load(), elapsed)
	}
	return fmt.Sprintf("Hashed %s of %s, confirmed %d duplicates in %d sets in %v",
		humanize.IBytes(hashed), humanize.IBytes(s.totalBytes),
		s.dupFiles.Load(), s.dupSets.Load(), elapsed)
}

// digested pairs a file with its computed digest for aggregation.
type digested struct {
	digest string // raw 32 bytes as map key
	file   *types.FileInfo
}

// Run digests all candidates and returns the confirmed duplicate sets.
// Set order and file order within a set are unspecified; the merger folds
// digests commutatively and does not depend on either.
func (h *Hasher) Run() []DuplicateSet {
	if len(h.groups) == 0 {
		return nil
	}

	var totalBytes uint64
	for _, g := range h.groups {
		for _, f := range g {
			totalBytes += uint64(f.Size)
		}
	}

	h.stats = &stats{totalBytes: totalBytes, startTime: time.Now()}
	h.bar = progress.New(h.showProgress, int64(totalBytes))
	h.bar.Describe(h.stats)

	jobCh := make(chan *types.FileInfo, 1000)
	resultCh := make(chan digested, 1000)

	var workerWg sync.WaitGroup
	for i := 0; i < h.workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for f := range jobCh {
				h.hashFile(f, resultCh)
			}
		}()
	}

	go func() {
		for _, g := range h.groups {
			for _, f := range g {
				jobCh <- f
			}
		}
		close(jobCh)
	}()

	go func() {
		workerWg.Wait()
		close(resultCh)
	}()

	byDigest := make(map[string][]*types.FileInfo)
	for r := range resultCh {
		byDigest[r.digest] = append(byDigest[r.digest], r.file)
	}

	var sets []DuplicateSet
	for digest, files := range byDigest {
		if len(files) < 2 {
			continue
		}
		sets = append(sets, DuplicateSet{Digest: []byte(digest), Files: files})
		h.stats.dupFiles.Add(int64(len(files)))
		h.stats.dupSets.Add(1)
	}

	h.bar.Finish(h.stats)
	return sets
}

// hashFile produces the digest for one file, consulting the cache first.
// Failures are reported on the error channel and the file is dropped; a
// directory containing it can then never be declared duplicate, which is
// the safe direction.
func (h *Hasher) hashFile(f *types.FileInfo, resultCh chan<- digested) {
	cachedDigest, err := h.cache.Lookup(f)
	if err != nil {
		h.sendError(fmt.Errorf("cache lookup %s: %w", f.Path, err))
		// Continue with digest computation on cache error
	}
	if cachedDigest != nil {
		h.stats.cachedBytes.Add(uint64(f.Size))
		h.advance()
		resultCh <- digested{string(cachedDigest), f}
		return
	}

	digest, n, err := hashContents(f.Path)
	if err != nil {
		h.sendError(fmt.Errorf("%s: %w", f.Path, err))
		return
	}

	if err := h.cache.Store(f, digest); err != nil {
		h.sendError(fmt.Errorf("cache store %s: %w", f.Path, err))
	}
	h.stats.hashedBytes.Add(uint64(n))
	h.advance()
	resultCh <- digested{string(digest), f}
}

// advance pushes progress to the bar from any worker goroutine.
func (h *Hasher) advance() {
	h.bar.Set(h.stats.hashedBytes.Load() + h.stats.cachedBytes.Load())
	h.bar.Describe(h.stats)
}

// sendError sends an error to the errors channel if it's not nil.
func (h *Hasher) sendError(err error) {
	if h.errCh != nil {
		h.errCh <- err
	}
}

// hashContents digests a file's entire content.
// Returns the raw SHA-256 digest, bytes actually read, and any error.
func hashContents(path string) (digest []byte, n int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	hasher := sha256.New()
	buf := make([]byte, blockSize)
	n, err = io.CopyBuffer(hasher, f, buf)
	if err != nil {
		return nil, n, err
	}

	return hasher.Sum(nil), n, nil
}
