// Package verify cross-checks photo rows against the managed photos
// directory. It mutates neither side; findings are reported for the
// doctor command to display.
package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/franz/figure-curator/internal/report"
	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
	"github.com/schollz/progressbar/v3"
)

// Checker compares the photo table with the photos directory
type Checker struct {
	store     *store.Store
	photosDir string
	logger    *report.EventLogger
}

// Config holds checker configuration
type Config struct {
	Store     *store.Store
	PhotosDir string
	Logger    *report.EventLogger
}

// New creates a new Checker
func New(cfg *Config) *Checker {
	if cfg.PhotosDir == "" {
		cfg.PhotosDir = "photos"
	}

	return &Checker{
		store:     cfg.Store,
		photosDir: cfg.PhotosDir,
		logger:    cfg.Logger,
	}
}

// Result represents a consistency check result
type Result struct {
	RowsChecked  int
	FilesChecked int

	// DanglingRows are photo rows whose file is gone
	DanglingRows []*store.Photo
	// OrphanFiles are files in the photos directory no row references
	OrphanFiles []string
	// MissingDir is set when the photos directory does not exist at all.
	// On its own it is not a finding: a collection without photos has no
	// directory, and rows pointing into a missing one show up as dangling.
	MissingDir bool
}

// Clean reports whether the check found nothing wrong
func (r *Result) Clean() bool {
	return len(r.DanglingRows) == 0 && len(r.OrphanFiles) == 0
}

// Check walks the photo rows and the photos directory and reports every
// inconsistency between them
func (c *Checker) Check(ctx context.Context) (*Result, error) {
	util.InfoLog("Checking photo consistency in %s", c.photosDir)

	rows, err := c.store.GetAllPhotos()
	if err != nil {
		return nil, fmt.Errorf("failed to load photo rows: %w", err)
	}

	result := &Result{RowsChecked: len(rows)}

	entries, err := os.ReadDir(c.photosDir)
	if os.IsNotExist(err) {
		result.MissingDir = true
		entries = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read photos directory: %w", err)
	}

	isTTY := util.IsTerminal(os.Stdout.Fd())
	var bar *progressbar.ProgressBar
	if isTTY && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(rows)+len(entries),
			progressbar.OptionSetDescription("Checking"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	referenced := make(map[string]bool, len(rows))
	for _, row := range rows {
		referenced[filepath.Clean(row.FilePath)] = true
		if !util.FileExists(row.FilePath) {
			result.DanglingRows = append(result.DanglingRows, row)
			c.logger.LogVerify(row.FilePath, "row references a missing file")
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Clean(filepath.Join(c.photosDir, entry.Name()))
		result.FilesChecked++
		if !referenced[path] {
			result.OrphanFiles = append(result.OrphanFiles, path)
			c.logger.LogVerify(path, "file has no photo row")
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	if bar != nil {
		bar.Finish()
	}

	if result.Clean() {
		util.SuccessLog("Photo check clean: %d rows, %d files", result.RowsChecked, result.FilesChecked)
	} else {
		util.WarnLog("Photo check found %d dangling rows, %d orphan files",
			len(result.DanglingRows), len(result.OrphanFiles))
	}

	return result, nil
}
