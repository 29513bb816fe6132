// Package backup turns the full store contents into a portable archive
// and destructively restores one. Creation snapshots the store and streams
// the container; restore parses the whole archive before anything is
// destroyed, then clears and rebuilds the store and photos directory.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/franz/figure-curator/internal/archive"
	"github.com/franz/figure-curator/internal/report"
	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
)

// Pipeline runs backup and restore against one store and photos directory
type Pipeline struct {
	store      *store.Store
	photosDir  string
	backupsDir string
	logger     *report.EventLogger
}

// Config holds pipeline configuration
type Config struct {
	Store      *store.Store
	PhotosDir  string
	BackupsDir string
	Logger     *report.EventLogger
}

// New creates a new Pipeline
func New(cfg *Config) *Pipeline {
	if cfg.PhotosDir == "" {
		cfg.PhotosDir = "photos"
	}
	if cfg.BackupsDir == "" {
		cfg.BackupsDir = "backups"
	}

	return &Pipeline{
		store:      cfg.Store,
		photosDir:  cfg.PhotosDir,
		backupsDir: cfg.BackupsDir,
		logger:     cfg.Logger,
	}
}

// CreateResult describes a written backup
type CreateResult struct {
	ArchivePath   string
	Figures       int
	Photos        int
	WishlistItems int
	Bytes         int64
	Manifest      *archive.Manifest
}

// Create writes a timestamped archive of the whole collection into the
// backups directory. The file appears under its final name only once it is
// complete.
func (p *Pipeline) Create(ctx context.Context) (*CreateResult, error) {
	start := time.Now()
	util.InfoLog("Collecting collection data...")

	figures, err := p.store.GetAllFigures()
	if err != nil {
		return nil, fmt.Errorf("failed to load figures: %w", err)
	}
	photos, err := p.store.GetAllPhotos()
	if err != nil {
		return nil, fmt.Errorf("failed to load photos: %w", err)
	}
	wishlist, err := p.store.GetAllWishlistItems()
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := util.EnsureDir(p.backupsDir); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}

	now := time.Now()
	archivePath := filepath.Join(p.backupsDir, fmt.Sprintf("backup_%s.zip", now.Format("20060102_150405")))
	partPath := archivePath + ".part"

	util.InfoLog("Writing archive %s...", archivePath)
	out, err := os.Create(partPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	manifest, err := archive.Write(out, &archive.ExportInput{
		Figures:   figures,
		Photos:    photos,
		Wishlist:  wishlist,
		PhotosDir: p.photosDir,
	}, now)
	if err != nil {
		out.Close()
		os.Remove(partPath)
		p.logger.LogError(report.EventBackup, archivePath, err)
		return nil, err
	}
	if err := out.Close(); err != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("failed to finish archive file: %w", err)
	}
	if err := os.Rename(partPath, archivePath); err != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("failed to move archive into place: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	result := &CreateResult{
		ArchivePath:   archivePath,
		Figures:       len(figures),
		Photos:        len(photos),
		WishlistItems: len(wishlist),
		Bytes:         info.Size(),
		Manifest:      manifest,
	}

	p.logger.LogBackup(archivePath, result.Figures, result.Photos, result.WishlistItems,
		result.Bytes, time.Since(start), nil)
	util.SuccessLog("Backup complete: %d figures, %d photos, %d wishlist items (%s)",
		result.Figures, result.Photos, result.WishlistItems, util.FormatBytes(result.Bytes))

	return result, nil
}
