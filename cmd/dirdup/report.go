package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/michaelcinquin/dirdup/internal/cache"
	"github.com/michaelcinquin/dirdup/internal/config"
	"github.com/michaelcinquin/dirdup/internal/hasher"
	"github.com/michaelcinquin/dirdup/internal/report"
	"github.com/michaelcinquin/dirdup/internal/scanner"
	"github.com/michaelcinquin/dirdup/internal/screener"
	"github.com/michaelcinquin/dirdup/internal/treemerge"
	"github.com/spf13/cobra"
)

// reportOptions holds CLI flags for the report command.
type reportOptions struct {
	minSizeStr     string
	excludes       []string
	workers        int
	noProgress     bool
	cacheFile      string
	followSymlinks bool
	oneFilesystem  bool
	skipHidden     bool
	configFile     string
}

// newReportCmd creates the report subcommand.
func newReportCmd() *cobra.Command {
	opts := &reportOptions{
		minSizeStr: "1",
		workers:    runtime.NumCPU(),
	}

	cmd := &cobra.Command{
		Use:   "report [paths...]",
		Short: "Report directory trees whose file contents are identical",
		Long: `Scans the given paths for duplicate files, then folds duplicates upward:
whenever every file under one directory matches every file under another,
the whole directories are reported as duplicates instead of the files.

Output is one line per directory, fingerprint followed by path, with "--"
separating groups. Nothing on disk is ever modified.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.minSizeStr, "min-size", "m", opts.minSizeStr, "Minimum file size (e.g., 100, 1K, 10M, 1G)")
	cmd.Flags().StringSliceVarP(&opts.excludes, "exclude", "e", nil, "Glob patterns to exclude")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", opts.workers, "Number of parallel workers")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Path to digest cache file (enables caching)")
	cmd.Flags().BoolVarP(&opts.followSymlinks, "follow-symlinks", "L", false, "Follow symbolic links during traversal")
	cmd.Flags().BoolVarP(&opts.oneFilesystem, "one-filesystem", "x", false, "Do not cross mount points")
	cmd.Flags().BoolVar(&opts.skipHidden, "skip-hidden", false, "Skip hidden files and directories")
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "YAML file with flag defaults")

	return cmd
}

// applyConfig fills in flag values the user left at their default from the
// config file. Explicit flags always win.
func applyConfig(cmd *cobra.Command, paths []string, opts *reportOptions) ([]string, error) {
	if opts.configFile == "" {
		return paths, nil
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if len(paths) == 0 {
		paths = cfg.Paths
	}
	if !flags.Changed("min-size") && cfg.MinSize != "" {
		opts.minSizeStr = cfg.MinSize
	}
	if !flags.Changed("exclude") {
		opts.excludes = cfg.Excludes
	}
	if !flags.Changed("workers") && cfg.Workers > 0 {
		opts.workers = cfg.Workers
	}
	if !flags.Changed("cache-file") {
		opts.cacheFile = cfg.CacheFile
	}
	if !flags.Changed("follow-symlinks") {
		opts.followSymlinks = cfg.FollowSymlinks
	}
	if !flags.Changed("one-filesystem") {
		opts.oneFilesystem = cfg.OneFilesystem
	}
	if !flags.Changed("skip-hidden") {
		opts.skipHidden = cfg.SkipHidden
	}
	return paths, nil
}

// drainErrors consumes errors from a channel and writes them to stderr.
// Clears the progress bar line before printing to avoid visual collision.
func drainErrors(errs <-chan error) {
	for err := range errs {
		fmt.Fprintf(os.Stderr, "\r\033[Kerror: %v\n", err)
	}
}

// runReport executes the pipeline: count → scan → screen → hash → merge → report.
func runReport(cmd *cobra.Command, paths []string, opts *reportOptions) error {
	paths, err := applyConfig(cmd, paths, opts)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no paths given (arguments or config file)")
	}

	minSize, err := parseSize(opts.minSizeStr)
	if err != nil {
		return fmt.Errorf("invalid --min-size: %w", err)
	}

	if err := validateGlobPatterns(opts.excludes); err != nil {
		return fmt.Errorf("invalid --exclude: %w", err)
	}

	var flags scanner.Flags
	if opts.followSymlinks {
		flags |= scanner.FollowSymlinks
	}
	if opts.oneFilesystem {
		flags |= scanner.OneFilesystem
	}
	if opts.skipHidden {
		flags |= scanner.SkipHidden
	}

	showProgress := !opts.noProgress

	// Create shared error channel
	errCh := make(chan error, 100)
	go drainErrors(errCh)
	defer close(errCh)

	// Phase 1: Count on-disk files per directory (unfiltered walk)
	merger, err := treemerge.New(treemerge.Config{
		Paths:        paths,
		Flags:        flags,
		Workers:      opts.workers,
		ShowProgress: showProgress,
		ErrCh:        errCh,
	})
	if err != nil {
		return err
	}

	// Phase 2: Scan for candidate files
	files := scanner.New(paths, scanner.Options{
		MinSize:      minSize,
		Excludes:     opts.excludes,
		Flags:        flags,
		Workers:      opts.workers,
		ShowProgress: showProgress,
		ErrCh:        errCh,
	}).Run()

	if len(files) == 0 {
		return nil
	}

	// Phase 3: Screen by size
	candidates := screener.New(files, showProgress).Run()
	if len(candidates) == 0 {
		return nil
	}

	// Phase 4: Open cache (if enabled) and digest candidates
	digestCache, err := cache.Open(opts.cacheFile)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = digestCache.Close() }()

	sets := hasher.New(candidates, opts.workers, showProgress, errCh, digestCache).Run()

	// Phase 5: Feed confirmed duplicates and merge upward
	for _, set := range sets {
		for _, f := range set.Files {
			merger.Feed(&treemerge.FileReport{Path: f.Path, Digest: set.Digest})
		}
	}
	groups := merger.Finish()

	// Phase 6: Render
	if err := report.Write(os.Stdout, groups); err != nil {
		return err
	}
	if showProgress {
		fmt.Fprintln(os.Stderr, "✔ "+report.Summarize(groups).String())
	}
	return nil
}
