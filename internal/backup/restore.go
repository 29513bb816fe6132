package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/figure-curator/internal/archive"
	"github.com/franz/figure-curator/internal/report"
	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
)

// RestoreResult describes a completed restore
type RestoreResult struct {
	Figures       int
	Photos        int
	WishlistItems int
	PhotoFiles    int
	SkippedPhotos int
}

// Restore replaces the whole collection with an archive's contents. The
// archive is fully parsed before anything is destroyed; a bad container
// aborts with the store untouched. After the clear the store is rebuilt
// row by row: figures get fresh identifiers, photo rows are re-pointed at
// the extracted files and remapped onto the new identifiers, wishlist rows
// come back when the archive carries them.
func (p *Pipeline) Restore(ctx context.Context, archivePath string) (*RestoreResult, error) {
	start := time.Now()
	util.InfoLog("Reading archive %s...", archivePath)

	a, err := archive.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	ds, err := a.ReadDataset()
	if err != nil {
		p.logger.LogError(report.EventRestore, archivePath, err)
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// Destructive point. Everything before this leaves the collection
	// untouched; a failure after it leaves whatever has been rebuilt.
	util.InfoLog("Clearing existing collection...")
	if err := p.store.ClearAllData(); err != nil {
		p.logger.LogError(report.EventRestore, archivePath, err)
		return nil, fmt.Errorf("failed to clear existing data: %w", err)
	}

	util.InfoLog("Restoring %d figures...", len(ds.Figures))
	idMap := make(map[int64]int64, len(ds.Figures))
	for _, f := range ds.Figures {
		fresh := *f
		fresh.ID = 0
		if err := p.store.AddFigure(&fresh); err != nil {
			return nil, fmt.Errorf("failed to restore figure %q: %w", f.Name, err)
		}
		idMap[f.ID] = fresh.ID
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	util.InfoLog("Restoring photos...")
	if err := util.ResetDir(p.photosDir); err != nil {
		return nil, fmt.Errorf("failed to reset photos directory: %w", err)
	}
	files := 0
	if a.HasBundle() {
		files, err = a.ExtractBundle(p.photosDir)
		if err != nil {
			p.logger.LogError(report.EventRestore, archivePath, err)
			return nil, err
		}
	}

	result := &RestoreResult{Figures: len(ds.Figures), PhotoFiles: files}
	for _, photo := range ds.Photos {
		newID, ok := idMap[photo.FigureID]
		if !ok {
			util.WarnLog("Skipping photo %s: figure %d not in archive",
				archive.BaseName(photo.FilePath), photo.FigureID)
			p.logger.LogPhoto(photo.FilePath, "", "skip", "owner not in archive", nil)
			result.SkippedPhotos++
			continue
		}

		row := &store.Photo{
			FigureID:  newID,
			FilePath:  filepath.Join(p.photosDir, archive.BaseName(photo.FilePath)),
			Caption:   photo.Caption,
			IsPrimary: photo.IsPrimary,
		}
		if err := p.store.AddPhoto(row); err != nil {
			return nil, fmt.Errorf("failed to restore photo %s: %w",
				archive.BaseName(photo.FilePath), err)
		}
		result.Photos++
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if len(ds.Wishlist) > 0 {
		util.InfoLog("Restoring %d wishlist items...", len(ds.Wishlist))
		for _, w := range ds.Wishlist {
			fresh := *w
			fresh.ID = 0
			if err := p.store.AddWishlistItem(&fresh); err != nil {
				return nil, fmt.Errorf("failed to restore wishlist item %q: %w", w.Name, err)
			}
			result.WishlistItems++
		}
	}

	p.logger.LogRestore(archivePath, result.Figures, result.Photos, result.WishlistItems,
		time.Since(start), nil)
	util.SuccessLog("Restore complete: %d figures, %d photos (%d files), %d wishlist items",
		result.Figures, result.Photos, result.PhotoFiles, result.WishlistItems)

	return result, nil
}
