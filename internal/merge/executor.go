package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/franz/figure-curator/internal/archive"
	"github.com/franz/figure-curator/internal/identity"
	"github.com/franz/figure-curator/internal/report"
	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
)

// Executor applies a merge plan to the store
type Executor struct {
	store     *store.Store
	photosDir string
	retry     *util.RetryConfig
	logger    *report.EventLogger
	running   atomic.Bool
}

// ExecutorConfig holds executor configuration
type ExecutorConfig struct {
	Store     *store.Store
	PhotosDir string
	Retry     *util.RetryConfig // Retry configuration for photo copies (nil = use default)
	Logger    *report.EventLogger
}

// NewExecutor creates a new Executor
func NewExecutor(cfg *ExecutorConfig) *Executor {
	if cfg.PhotosDir == "" {
		cfg.PhotosDir = "photos"
	}
	if cfg.Retry == nil {
		cfg.Retry = util.DefaultRetryConfig()
	}

	return &Executor{
		store:     cfg.Store,
		photosDir: cfg.PhotosDir,
		retry:     cfg.Retry,
		logger:    cfg.Logger,
	}
}

// Result represents merge results
type Result struct {
	AddedFigures     int
	UpdatedFigures   int
	AddedPhotos      int
	SkippedConflicts int
}

// Progress is a coarse stage notification emitted while a merge runs.
// Percentages are monotonically non-decreasing within a run.
type Progress struct {
	Message    string
	Percentage int
}

// Update is one message from a running merge: a progress notification, or
// the terminal result or error. Exactly one terminal message is sent, then
// the channel closes.
type Update struct {
	Progress *Progress
	Result   *Result
	Err      error
}

// Run executes the plan on its own goroutine and streams updates. The
// channel buffer covers every message a run can emit, so an abandoned
// receiver never blocks the worker.
func (e *Executor) Run(ctx context.Context, source *archive.Dataset, plan *Plan) <-chan Update {
	updates := make(chan Update, 8)

	if !e.running.CompareAndSwap(false, true) {
		updates <- Update{Err: fmt.Errorf("another merge is already running")}
		close(updates)
		return updates
	}

	go func() {
		defer close(updates)
		defer e.running.Store(false)

		result, err := e.execute(ctx, source, plan, func(message string, percentage int) {
			updates <- Update{Progress: &Progress{Message: message, Percentage: percentage}}
		})
		if err != nil {
			updates <- Update{Err: err}
			return
		}
		updates <- Update{Result: result}
	}()

	return updates
}

// Execute applies the plan synchronously. On error no counters are
// returned; a merge either completes with a full result or fails.
func (e *Executor) Execute(ctx context.Context, source *archive.Dataset, plan *Plan) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("another merge is already running")
	}
	defer e.running.Store(false)

	return e.execute(ctx, source, plan, func(string, int) {})
}

func (e *Executor) execute(ctx context.Context, source *archive.Dataset, plan *Plan, progress func(string, int)) (*Result, error) {
	util.InfoLog("Starting merge: %d new figures, %d conflicts, %d source photos",
		len(plan.NewFigures), len(plan.Conflicts), len(source.Photos))

	result := &Result{}
	progress("Starting merge...", 0)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// Stage 1: insert new figures. IDs are cleared so the store assigns
	// fresh ones; timestamps are stamped by the insert.
	if len(plan.NewFigures) > 0 {
		progress(fmt.Sprintf("Adding %d new figures...", len(plan.NewFigures)), 20)
		for _, f := range plan.NewFigures {
			fresh := *f
			fresh.ID = 0
			if err := e.store.AddFigure(&fresh); err != nil {
				return nil, fmt.Errorf("failed to add figure %q: %w", f.Name, err)
			}
			result.AddedFigures++
			e.logger.LogFigure(f.Name, f.Series, "insert", "")
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// Stage 2: apply conflict resolutions
	progress("Processing figure conflicts...", 40)
	for _, c := range plan.Conflicts {
		switch c.Resolution {
		case ResolutionUpdate:
			updated := *c.Source
			updated.ID = c.Target.ID
			if err := e.store.UpdateFigure(&updated); err != nil {
				return nil, fmt.Errorf("failed to update figure %q: %w", c.Source.Name, err)
			}
			result.UpdatedFigures++
			e.logger.LogFigure(c.Source.Name, c.Source.Series, "update", string(c.Resolution))
		case ResolutionMergePhotos:
			// Fields stay untouched; the photo stage links the source
			// figure's photos to the existing target by identity.
			result.UpdatedFigures++
			e.logger.LogFigure(c.Source.Name, c.Source.Series, "merge-photos", string(c.Resolution))
		default:
			result.SkippedConflicts++
			e.logger.LogFigure(c.Source.Name, c.Source.Series, "skip", string(ResolutionSkip))
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// Stage 3 and 4: ensure the photos directory, then copy and link
	progress("Processing photos...", 60)
	if err := util.EnsureDir(e.photosDir); err != nil {
		return nil, fmt.Errorf("failed to create photos directory: %w", err)
	}

	added, err := e.copyPhotos(source, plan)
	if err != nil {
		return nil, err
	}
	result.AddedPhotos = added

	progress("Finalizing merge...", 90)
	progress("Merge complete!", 100)

	util.SuccessLog("Merge complete: %d added, %d updated, %d photos, %d conflicts skipped",
		result.AddedFigures, result.UpdatedFigures, result.AddedPhotos, result.SkippedConflicts)

	return result, nil
}

// copyPhotos copies every readable source photo into the photos directory
// and links each to the figure matching its owner's identity in the
// now-current store. Files whose owner cannot be matched are copied but get
// no row; linkage is best effort. Returns the number of rows added.
func (e *Executor) copyPhotos(source *archive.Dataset, plan *Plan) (int, error) {
	if len(source.Photos) == 0 {
		return 0, nil
	}
	if source.PhotosDir == "" {
		util.InfoLog("Archive has no photo bundle, skipping photo import")
		return 0, nil
	}

	// Figure identities as they stand after the figure stages
	current, err := e.store.GetAllFigures()
	if err != nil {
		return 0, fmt.Errorf("failed to load figures for photo linkage: %w", err)
	}
	index := identity.NewIndex(current)

	sourceByID := make(map[int64]*store.Figure, len(source.Figures))
	for _, f := range source.Figures {
		sourceByID[f.ID] = f
	}

	skipNames := make(map[string]bool)
	for _, col := range plan.PhotoCollisions {
		if col.Resolution == CollisionSkip {
			skipNames[col.Filename] = true
		}
	}

	added := 0
	for _, photo := range source.Photos {
		srcPath := source.PhotoSourcePath(photo)
		name := archive.BaseName(photo.FilePath)

		if skipNames[name] {
			e.logger.LogPhoto(srcPath, "", "skip", "collision resolved as skip", nil)
			continue
		}
		if !util.FileExists(srcPath) {
			e.logger.LogPhoto(srcPath, "", "skip", "source file missing from bundle", nil)
			continue
		}

		// Re-list the directory per file so the resolver observes copies
		// made earlier in this run
		taken, err := takenNames(e.photosDir)
		if err != nil {
			return added, fmt.Errorf("failed to list photos directory: %w", err)
		}
		finalName := ResolveFilename(name, func(n string) bool { return taken[n] })
		destPath := filepath.Join(e.photosDir, finalName)

		_, err = util.RetryWithBackoff(e.retry, func() (int64, error) {
			return util.CopyFile(srcPath, destPath)
		}, fmt.Sprintf("copy %s", name))
		if err != nil {
			util.WarnLog("Could not copy photo %s: %v", srcPath, err)
			e.logger.LogPhoto(srcPath, destPath, "skip", "copy failed", err)
			continue
		}

		reason := ""
		if finalName != name {
			reason = "renamed to avoid collision"
		}

		owner := sourceByID[photo.FigureID]
		if owner == nil {
			e.logger.LogPhoto(srcPath, destPath, "orphan", "photo has no source figure", nil)
			continue
		}
		target := index.Match(owner)
		if target == nil {
			e.logger.LogPhoto(srcPath, destPath, "orphan", "no matching figure in collection", nil)
			continue
		}

		row := &store.Photo{
			FigureID:  target.ID,
			FilePath:  destPath,
			Caption:   photo.Caption,
			IsPrimary: photo.IsPrimary,
		}
		if err := e.store.AddPhoto(row); err != nil {
			return added, fmt.Errorf("failed to record photo %s: %w", finalName, err)
		}
		added++
		e.logger.LogPhoto(srcPath, destPath, "copy", reason, nil)
	}

	return added, nil
}

// takenNames lists the current base names in the photos directory
func takenNames(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	return names, nil
}
