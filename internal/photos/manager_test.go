package photos

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
)

func newTestManager(t *testing.T) (*Manager, *store.Store, string) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "afc-photos-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	st, err := store.Open(filepath.Join(tmpDir, "collection.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	photosDir := filepath.Join(tmpDir, "photos")
	return NewManager(st, photosDir), st, tmpDir
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}
	return path
}

func TestAttachCopiesAndRecords(t *testing.T) {
	m, st, tmpDir := newTestManager(t)

	f := &store.Figure{Name: "Optimus Prime"}
	if err := st.AddFigure(f); err != nil {
		t.Fatalf("failed to add figure: %v", err)
	}

	front := writeSource(t, tmpDir, "front.jpg", "front")
	back := writeSource(t, tmpDir, "back.jpg", "back")

	attached, err := m.Attach(f.ID, []string{front, back}, "box shots", false)
	if err != nil {
		t.Fatalf("failed to attach photos: %v", err)
	}
	if len(attached) != 2 {
		t.Fatalf("expected 2 attached photos, got %d", len(attached))
	}

	wantFirst := filepath.Join(m.Dir(), "figure_1_1_front.jpg")
	if attached[0].FilePath != wantFirst {
		t.Errorf("expected first photo at %s, got %s", wantFirst, attached[0].FilePath)
	}
	data, err := os.ReadFile(attached[0].FilePath)
	if err != nil {
		t.Fatalf("failed to read copied photo: %v", err)
	}
	if string(data) != "front" {
		t.Errorf("copied photo content mismatch: %q", data)
	}

	// First photo of a figure without photos becomes primary
	if !attached[0].IsPrimary {
		t.Error("expected the first attached photo to be primary")
	}
	if attached[1].IsPrimary {
		t.Error("expected the second attached photo not to be primary")
	}
	if attached[0].Caption != "box shots" {
		t.Errorf("expected caption to be recorded, got %q", attached[0].Caption)
	}

	rows, err := st.GetFigurePhotos(f.ID)
	if err != nil {
		t.Fatalf("failed to list photos: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 photo rows, got %d", len(rows))
	}
}

func TestAttachKeepsExistingPrimary(t *testing.T) {
	m, st, tmpDir := newTestManager(t)

	f := &store.Figure{Name: "Ratchet"}
	if err := st.AddFigure(f); err != nil {
		t.Fatalf("failed to add figure: %v", err)
	}

	first := writeSource(t, tmpDir, "first.jpg", "1")
	if _, err := m.Attach(f.ID, []string{first, first}, "", false); err != nil {
		t.Fatalf("failed to attach initial photo: %v", err)
	}

	second := writeSource(t, tmpDir, "second.jpg", "2")
	attached, err := m.Attach(f.ID, []string{second}, "", false)
	if err != nil {
		t.Fatalf("failed to attach second photo: %v", err)
	}
	if attached[0].IsPrimary {
		t.Error("expected later attach not to steal primary")
	}

	// With the flag the new photo takes over
	third := writeSource(t, tmpDir, "third.jpg", "3")
	attached, err = m.Attach(f.ID, []string{third}, "", true)
	if err != nil {
		t.Fatalf("failed to attach third photo: %v", err)
	}
	if !attached[0].IsPrimary {
		t.Error("expected --primary attach to become primary")
	}

	rows, err := st.GetFigurePhotos(f.ID)
	if err != nil {
		t.Fatalf("failed to list photos: %v", err)
	}
	primaries := 0
	for _, p := range rows {
		if p.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Errorf("expected exactly one primary photo, got %d", primaries)
	}
}

func TestAttachSkipsUnreadableSources(t *testing.T) {
	m, st, tmpDir := newTestManager(t)

	f := &store.Figure{Name: "Soundwave"}
	if err := st.AddFigure(f); err != nil {
		t.Fatalf("failed to add figure: %v", err)
	}

	good := writeSource(t, tmpDir, "good.jpg", "ok")
	missing := filepath.Join(tmpDir, "does-not-exist.jpg")

	attached, err := m.Attach(f.ID, []string{missing, good}, "", false)
	if err != nil {
		t.Fatalf("expected per-file skip, got error: %v", err)
	}
	if len(attached) != 1 {
		t.Fatalf("expected 1 attached photo, got %d", len(attached))
	}
	if filepath.Base(attached[0].FilePath) != "figure_1_1_good.jpg" {
		t.Errorf("expected skipped source not to consume a sequence number, got %s",
			filepath.Base(attached[0].FilePath))
	}
}

func TestAttachNeverOverwrites(t *testing.T) {
	m, st, tmpDir := newTestManager(t)

	f := &store.Figure{Name: "Megatron"}
	if err := st.AddFigure(f); err != nil {
		t.Fatalf("failed to add figure: %v", err)
	}

	source := writeSource(t, tmpDir, "shot.jpg", "v1")
	if _, err := m.Attach(f.ID, []string{source}, "", false); err != nil {
		t.Fatalf("failed to attach: %v", err)
	}

	// A row deletion that leaves the file behind must not cause the next
	// attach of the same basename to clobber it
	rows, err := st.GetFigurePhotos(f.ID)
	if err != nil {
		t.Fatalf("failed to list photos: %v", err)
	}
	keptFile := rows[0].FilePath
	if _, err := st.DB().Exec("DELETE FROM photos WHERE id = ?", rows[0].ID); err != nil {
		t.Fatalf("failed to delete row: %v", err)
	}

	if err := os.WriteFile(source, []byte("v2"), 0644); err != nil {
		t.Fatalf("failed to rewrite source: %v", err)
	}
	attached, err := m.Attach(f.ID, []string{source}, "", false)
	if err != nil {
		t.Fatalf("failed to re-attach: %v", err)
	}

	if attached[0].FilePath == keptFile {
		t.Fatalf("expected a fresh file name, got %s again", keptFile)
	}
	data, err := os.ReadFile(keptFile)
	if err != nil {
		t.Fatalf("failed to read original file: %v", err)
	}
	if string(data) != "v1" {
		t.Errorf("original file was overwritten: %q", data)
	}
}

func TestAttachMissingFigure(t *testing.T) {
	m, _, tmpDir := newTestManager(t)

	source := writeSource(t, tmpDir, "orphan.jpg", "x")
	_, err := m.Attach(42, []string{source}, "", false)
	if !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
