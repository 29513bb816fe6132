// Package photos manages the files behind a figure's photo rows: copying
// attachments into the managed directory with standardized names and
// recording the matching rows.
package photos

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
)

// Manager attaches photo files to figures. Files live flat in a single
// managed directory named figure_<id>_<n>_<basename>.
type Manager struct {
	store     *store.Store
	photosDir string
}

func NewManager(st *store.Store, photosDir string) *Manager {
	return &Manager{store: st, photosDir: photosDir}
}

// Dir returns the managed photos directory.
func (m *Manager) Dir() string {
	return m.photosDir
}

// Attach copies the given source files into the managed directory and
// inserts a photo row for each. Unreadable sources are logged and skipped.
// The first attached file becomes the primary photo when primary is set or
// when the figure has no photos yet.
func (m *Manager) Attach(figureID int64, sources []string, caption string, primary bool) ([]*store.Photo, error) {
	figure, err := m.store.GetFigure(figureID)
	if err != nil {
		return nil, err
	}
	if figure == nil {
		return nil, fmt.Errorf("figure %d: %w", figureID, util.ErrNotFound)
	}

	if err := util.EnsureDir(m.photosDir); err != nil {
		return nil, fmt.Errorf("failed to create photos directory: %w", err)
	}

	existing, err := m.store.GetFigurePhotos(figureID)
	if err != nil {
		return nil, err
	}
	makePrimary := primary || len(existing) == 0
	seq := len(existing)

	var attached []*store.Photo
	for _, source := range sources {
		if !readable(source) {
			util.WarnLog("Skipping unreadable photo %s", source)
			continue
		}

		seq++
		destPath := m.nextPath(figureID, seq, filepath.Base(source))
		if _, err := util.CopyFile(source, destPath); err != nil {
			util.WarnLog("Could not copy photo %s: %v", source, err)
			seq--
			continue
		}

		p := &store.Photo{
			FigureID:  figureID,
			FilePath:  destPath,
			Caption:   caption,
			IsPrimary: makePrimary && len(attached) == 0,
		}
		if err := m.store.AddPhoto(p); err != nil {
			os.Remove(destPath)
			return attached, fmt.Errorf("failed to record photo %s: %w", source, err)
		}
		attached = append(attached, p)
	}

	return attached, nil
}

// nextPath builds figure_<id>_<n>_<base> and bumps n past any name already
// on disk, so re-attaching a file never overwrites an earlier copy.
func (m *Manager) nextPath(figureID int64, seq int, base string) string {
	for {
		name := fmt.Sprintf("figure_%d_%d_%s", figureID, seq, base)
		destPath := filepath.Join(m.photosDir, name)
		if !util.FileExists(destPath) {
			return destPath
		}
		seq++
	}
}

func readable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
