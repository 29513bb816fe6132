package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/figure-curator/internal/archive"
	"github.com/franz/figure-curator/internal/report"
	"github.com/franz/figure-curator/internal/store"
)

func newTestExecutor(t *testing.T) (*Executor, *store.Store, string) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "afc-merge-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	st, err := store.Open(filepath.Join(tmpDir, "collection.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	e := NewExecutor(&ExecutorConfig{
		Store:     st,
		PhotosDir: filepath.Join(tmpDir, "photos"),
		Logger:    report.NullLogger(),
	})
	return e, st, tmpDir
}

func writeBundleFile(t *testing.T, tmpDir, name, content string) string {
	t.Helper()

	bundleDir := filepath.Join(tmpDir, "bundle")
	if err := os.MkdirAll(bundleDir, 0755); err != nil {
		t.Fatalf("failed to create bundle dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(bundleDir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write bundle file: %v", err)
	}
	return bundleDir
}

func TestExecuteAddsNewFiguresWithFreshIDs(t *testing.T) {
	e, st, _ := newTestExecutor(t)

	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 101, Name: "Optimus Prime", Series: "Transformers", Manufacturer: "Hasbro"},
			{ID: 102, Name: "Megatron", Series: "Transformers", Manufacturer: "Hasbro"},
		},
	}
	plan := &Plan{NewFigures: source.Figures}

	result, err := e.Execute(context.Background(), source, plan)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.AddedFigures != 2 {
		t.Errorf("expected 2 added figures, got %d", result.AddedFigures)
	}

	figures, err := st.GetAllFigures()
	if err != nil {
		t.Fatalf("failed to list figures: %v", err)
	}
	if len(figures) != 2 {
		t.Fatalf("expected 2 figures in collection, got %d", len(figures))
	}
	seen := make(map[int64]bool)
	for _, f := range figures {
		if f.ID == 101 || f.ID == 102 {
			t.Errorf("source identifier %d leaked into the collection", f.ID)
		}
		if seen[f.ID] {
			t.Errorf("duplicate assigned identifier %d", f.ID)
		}
		seen[f.ID] = true
		if f.CreatedAt.IsZero() {
			t.Errorf("figure %d has no created timestamp", f.ID)
		}
	}

	// The plan itself keeps the source identifiers
	if source.Figures[0].ID != 101 {
		t.Errorf("execute mutated the source dataset: ID %d", source.Figures[0].ID)
	}
}

func TestExecuteSkipLeavesTargetUntouched(t *testing.T) {
	e, st, _ := newTestExecutor(t)

	target := &store.Figure{
		Name: "Optimus Prime", Series: "Transformers", Manufacturer: "Hasbro",
		Condition: "Loose", Notes: "display shelf",
	}
	if err := st.AddFigure(target); err != nil {
		t.Fatalf("failed to seed figure: %v", err)
	}

	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 1, Name: "Optimus Prime", Series: "Transformers", Manufacturer: "Hasbro",
				Condition: "Mint", Notes: "imported"},
		},
	}
	plan := &Plan{
		Conflicts: []*Conflict{
			{Source: source.Figures[0], Target: target, Resolution: ResolutionSkip},
		},
	}

	result, err := e.Execute(context.Background(), source, plan)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.SkippedConflicts != 1 || result.UpdatedFigures != 0 || result.AddedFigures != 0 {
		t.Errorf("unexpected counters: %+v", result)
	}

	kept, err := st.GetFigure(target.ID)
	if err != nil {
		t.Fatalf("failed to reload figure: %v", err)
	}
	if kept.Condition != "Loose" || kept.Notes != "display shelf" {
		t.Errorf("skip modified the existing figure: %+v", kept)
	}

	figures, err := st.GetAllFigures()
	if err != nil {
		t.Fatalf("failed to list figures: %v", err)
	}
	if len(figures) != 1 {
		t.Errorf("skip changed the figure count: %d", len(figures))
	}
}

func TestExecuteUpdateOverwritesTarget(t *testing.T) {
	e, st, _ := newTestExecutor(t)

	target := &store.Figure{
		Name: "Optimus Prime", Series: "Transformers", Manufacturer: "Hasbro",
		Condition: "Loose", CurrentValue: 40,
	}
	if err := st.AddFigure(target); err != nil {
		t.Fatalf("failed to seed figure: %v", err)
	}

	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 55, Name: "optimus prime", Series: "Transformers", Manufacturer: "Hasbro",
				Condition: "Mint", CurrentValue: 120},
		},
	}
	plan := &Plan{
		Conflicts: []*Conflict{
			{Source: source.Figures[0], Target: target, Resolution: ResolutionUpdate},
		},
	}

	result, err := e.Execute(context.Background(), source, plan)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.UpdatedFigures != 1 {
		t.Errorf("expected 1 updated figure, got %d", result.UpdatedFigures)
	}

	updated, err := st.GetFigure(target.ID)
	if err != nil {
		t.Fatalf("failed to reload figure: %v", err)
	}
	if updated.ID != target.ID {
		t.Errorf("update changed the identifier: %d", updated.ID)
	}
	if updated.Condition != "Mint" || updated.CurrentValue != 120 {
		t.Errorf("source fields did not win: %+v", updated)
	}
	if updated.Name != "optimus prime" {
		t.Errorf("expected the source spelling to win, got %q", updated.Name)
	}
}

func TestExecuteMergePhotosKeepsFieldsAndAttaches(t *testing.T) {
	e, st, tmpDir := newTestExecutor(t)

	target := &store.Figure{
		Name: "Optimus Prime", Series: "Transformers", Manufacturer: "Hasbro",
		Condition: "Loose",
	}
	if err := st.AddFigure(target); err != nil {
		t.Fatalf("failed to seed figure: %v", err)
	}

	bundleDir := writeBundleFile(t, tmpDir, "cab.jpg", "cab")
	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 3, Name: "Optimus Prime", Series: "Transformers", Manufacturer: "Hasbro",
				Condition: "Mint"},
		},
		Photos: []*store.Photo{
			{ID: 1, FigureID: 3, FilePath: "/elsewhere/photos/cab.jpg", Caption: "truck cab"},
		},
		PhotosDir: bundleDir,
	}
	plan := &Plan{
		Conflicts: []*Conflict{
			{Source: source.Figures[0], Target: target, Resolution: ResolutionMergePhotos},
		},
	}

	result, err := e.Execute(context.Background(), source, plan)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.UpdatedFigures != 1 || result.AddedPhotos != 1 {
		t.Errorf("unexpected counters: %+v", result)
	}

	kept, err := st.GetFigure(target.ID)
	if err != nil {
		t.Fatalf("failed to reload figure: %v", err)
	}
	if kept.Condition != "Loose" {
		t.Errorf("merge-photos modified figure fields: %+v", kept)
	}

	rows, err := st.GetFigurePhotos(target.ID)
	if err != nil {
		t.Fatalf("failed to list photos: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 attached photo, got %d", len(rows))
	}
	if rows[0].Caption != "truck cab" {
		t.Errorf("caption not carried over: %q", rows[0].Caption)
	}
}

func TestExecuteImportIntoEmptyCollection(t *testing.T) {
	e, st, tmpDir := newTestExecutor(t)

	bundleDir := writeBundleFile(t, tmpDir, "spiderman.jpg", "web")
	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 42, Name: "Spider-Man", Series: "Marvel Legends", Manufacturer: "Hasbro"},
		},
		Photos: []*store.Photo{
			{ID: 7, FigureID: 42, FilePath: `C:\collection\photos\spiderman.jpg`,
				Caption: "MCU suit", IsPrimary: true},
		},
		PhotosDir: bundleDir,
	}

	planner := NewPlanner(&PlannerConfig{Store: st, Logger: report.NullLogger()})
	plan, err := planner.Analyze(context.Background(), source)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(plan.Conflicts) != 0 || len(plan.PhotoCollisions) != 0 {
		t.Fatalf("empty collection produced conflicts: %+v", plan.Summary)
	}

	result, err := e.Execute(context.Background(), source, plan)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.AddedFigures != 1 || result.AddedPhotos != 1 {
		t.Errorf("unexpected counters: %+v", result)
	}

	figures, err := st.GetAllFigures()
	if err != nil {
		t.Fatalf("failed to list figures: %v", err)
	}
	if len(figures) != 1 || figures[0].Name != "Spider-Man" {
		t.Fatalf("unexpected figures: %+v", figures)
	}

	// The file keeps its name in an empty photos directory
	wantPath := filepath.Join(e.photosDir, "spiderman.jpg")
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("copied photo missing: %v", err)
	}
	if string(data) != "web" {
		t.Errorf("photo content mismatch: %q", data)
	}

	rows, err := st.GetFigurePhotos(figures[0].ID)
	if err != nil {
		t.Fatalf("failed to list photos: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 photo row, got %d", len(rows))
	}
	if rows[0].FilePath != wantPath {
		t.Errorf("row path %q, want %q", rows[0].FilePath, wantPath)
	}
	if rows[0].Caption != "MCU suit" || !rows[0].IsPrimary {
		t.Errorf("photo attributes not carried: %+v", rows[0])
	}
}

func TestExecuteRenamesCollidingPhoto(t *testing.T) {
	e, st, tmpDir := newTestExecutor(t)

	if err := os.MkdirAll(e.photosDir, 0755); err != nil {
		t.Fatalf("failed to create photos dir: %v", err)
	}
	existingPath := filepath.Join(e.photosDir, "front.jpg")
	if err := os.WriteFile(existingPath, []byte("old"), 0644); err != nil {
		t.Fatalf("failed to seed existing photo: %v", err)
	}

	resident := &store.Figure{Name: "Soundwave", Series: "Transformers", Manufacturer: "Hasbro"}
	if err := st.AddFigure(resident); err != nil {
		t.Fatalf("failed to seed figure: %v", err)
	}
	if err := st.AddPhoto(&store.Photo{FigureID: resident.ID, FilePath: existingPath}); err != nil {
		t.Fatalf("failed to seed photo row: %v", err)
	}

	bundleDir := writeBundleFile(t, tmpDir, "front.jpg", "new")
	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 1, Name: "Ravage", Series: "Transformers", Manufacturer: "Hasbro"},
		},
		Photos: []*store.Photo{
			{ID: 1, FigureID: 1, FilePath: "/other/photos/front.jpg"},
		},
		PhotosDir: bundleDir,
	}

	planner := NewPlanner(&PlannerConfig{Store: st, Logger: report.NullLogger()})
	plan, err := planner.Analyze(context.Background(), source)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(plan.PhotoCollisions) != 1 {
		t.Fatalf("expected 1 collision, got %d", len(plan.PhotoCollisions))
	}

	result, err := e.Execute(context.Background(), source, plan)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.AddedPhotos != 1 {
		t.Errorf("expected 1 added photo, got %d", result.AddedPhotos)
	}

	// The resident file is untouched, the incoming one got a probed name
	data, err := os.ReadFile(existingPath)
	if err != nil {
		t.Fatalf("failed to read resident photo: %v", err)
	}
	if string(data) != "old" {
		t.Errorf("resident photo was overwritten: %q", data)
	}
	renamed := filepath.Join(e.photosDir, "front_1.jpg")
	data, err = os.ReadFile(renamed)
	if err != nil {
		t.Fatalf("renamed photo missing: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("renamed photo content mismatch: %q", data)
	}
}

func TestExecuteSkipsCollidingPhotoOnRequest(t *testing.T) {
	e, st, tmpDir := newTestExecutor(t)

	if err := os.MkdirAll(e.photosDir, 0755); err != nil {
		t.Fatalf("failed to create photos dir: %v", err)
	}
	existingPath := filepath.Join(e.photosDir, "front.jpg")
	if err := os.WriteFile(existingPath, []byte("old"), 0644); err != nil {
		t.Fatalf("failed to seed existing photo: %v", err)
	}

	resident := &store.Figure{Name: "Soundwave", Series: "Transformers", Manufacturer: "Hasbro"}
	if err := st.AddFigure(resident); err != nil {
		t.Fatalf("failed to seed figure: %v", err)
	}
	if err := st.AddPhoto(&store.Photo{FigureID: resident.ID, FilePath: existingPath}); err != nil {
		t.Fatalf("failed to seed photo row: %v", err)
	}

	bundleDir := writeBundleFile(t, tmpDir, "front.jpg", "new")
	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 1, Name: "Ravage", Series: "Transformers", Manufacturer: "Hasbro"},
		},
		Photos: []*store.Photo{
			{ID: 1, FigureID: 1, FilePath: "/other/photos/front.jpg"},
		},
		PhotosDir: bundleDir,
	}

	planner := NewPlanner(&PlannerConfig{Store: st, Logger: report.NullLogger()})
	plan, err := planner.Analyze(context.Background(), source)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	plan.SetCollisionActions(CollisionSkip)

	result, err := e.Execute(context.Background(), source, plan)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.AddedPhotos != 0 {
		t.Errorf("expected no added photos, got %d", result.AddedPhotos)
	}

	if _, err := os.Stat(filepath.Join(e.photosDir, "front_1.jpg")); !os.IsNotExist(err) {
		t.Error("skipped photo was copied anyway")
	}
	photos, err := st.GetAllPhotos()
	if err != nil {
		t.Fatalf("failed to list photos: %v", err)
	}
	if len(photos) != 1 {
		t.Errorf("expected only the resident photo row, got %d", len(photos))
	}
}

func TestExecuteCopiesUnlinkablePhotoWithoutRow(t *testing.T) {
	e, st, tmpDir := newTestExecutor(t)

	bundleDir := writeBundleFile(t, tmpDir, "stray.jpg", "stray")
	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 1, Name: "Jazz", Series: "Transformers", Manufacturer: "Hasbro"},
		},
		Photos: []*store.Photo{
			// No source figure carries identifier 999
			{ID: 1, FigureID: 999, FilePath: "/other/photos/stray.jpg"},
		},
		PhotosDir: bundleDir,
	}
	plan := &Plan{NewFigures: source.Figures}

	result, err := e.Execute(context.Background(), source, plan)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.AddedPhotos != 0 {
		t.Errorf("expected no linked photos, got %d", result.AddedPhotos)
	}

	// The file is kept even though no row references it
	if _, err := os.Stat(filepath.Join(e.photosDir, "stray.jpg")); err != nil {
		t.Errorf("expected the file to be copied: %v", err)
	}
	photos, err := st.GetAllPhotos()
	if err != nil {
		t.Fatalf("failed to list photos: %v", err)
	}
	if len(photos) != 0 {
		t.Errorf("expected no photo rows, got %d", len(photos))
	}
}

func TestExecuteSkipsMissingBundleFile(t *testing.T) {
	e, st, tmpDir := newTestExecutor(t)

	bundleDir := writeBundleFile(t, tmpDir, "present.jpg", "here")
	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 1, Name: "Prowl", Series: "Transformers", Manufacturer: "Hasbro"},
		},
		Photos: []*store.Photo{
			{ID: 1, FigureID: 1, FilePath: "/other/photos/present.jpg"},
			{ID: 2, FigureID: 1, FilePath: "/other/photos/ghost.jpg"},
		},
		PhotosDir: bundleDir,
	}
	plan := &Plan{NewFigures: source.Figures}

	result, err := e.Execute(context.Background(), source, plan)
	if err != nil {
		t.Fatalf("expected per-file tolerance, got error: %v", err)
	}
	if result.AddedPhotos != 1 {
		t.Errorf("expected 1 added photo, got %d", result.AddedPhotos)
	}

	figures, err := st.GetAllFigures()
	if err != nil {
		t.Fatalf("failed to list figures: %v", err)
	}
	rows, err := st.GetFigurePhotos(figures[0].ID)
	if err != nil {
		t.Fatalf("failed to list photos: %v", err)
	}
	if len(rows) != 1 || filepath.Base(rows[0].FilePath) != "present.jpg" {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestExecuteWithoutPhotoBundle(t *testing.T) {
	e, st, _ := newTestExecutor(t)

	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 1, Name: "Ironhide", Series: "Transformers", Manufacturer: "Hasbro"},
		},
		Photos: []*store.Photo{
			{ID: 1, FigureID: 1, FilePath: "/other/photos/van.jpg"},
		},
	}
	plan := &Plan{NewFigures: source.Figures}

	result, err := e.Execute(context.Background(), source, plan)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.AddedFigures != 1 || result.AddedPhotos != 0 {
		t.Errorf("unexpected counters: %+v", result)
	}

	photos, err := st.GetAllPhotos()
	if err != nil {
		t.Fatalf("failed to list photos: %v", err)
	}
	if len(photos) != 0 {
		t.Errorf("expected no photo rows without a bundle, got %d", len(photos))
	}
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	e, st, _ := newTestExecutor(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 1, Name: "Sideswipe", Series: "Transformers", Manufacturer: "Hasbro"},
		},
	}
	plan := &Plan{NewFigures: source.Figures}

	result, err := e.Execute(ctx, source, plan)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result != nil {
		t.Errorf("expected no result from an aborted merge, got %+v", result)
	}

	figures, err := st.GetAllFigures()
	if err != nil {
		t.Fatalf("failed to list figures: %v", err)
	}
	if len(figures) != 0 {
		t.Errorf("aborted merge wrote %d figures", len(figures))
	}
}

func TestRunStreamsProgress(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 1, Name: "Hound", Series: "Transformers", Manufacturer: "Hasbro"},
		},
	}
	plan := &Plan{NewFigures: source.Figures}

	var messages []string
	var result *Result
	lastPercentage := -1
	terminals := 0

	for update := range e.Run(context.Background(), source, plan) {
		switch {
		case update.Progress != nil:
			messages = append(messages, update.Progress.Message)
			if update.Progress.Percentage < lastPercentage {
				t.Errorf("percentage went backwards: %d after %d",
					update.Progress.Percentage, lastPercentage)
			}
			lastPercentage = update.Progress.Percentage
		case update.Err != nil:
			t.Fatalf("unexpected error update: %v", update.Err)
		default:
			result = update.Result
			terminals++
		}
	}

	if terminals != 1 {
		t.Fatalf("expected exactly one terminal update, got %d", terminals)
	}
	if result.AddedFigures != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(messages) == 0 || messages[0] != "Starting merge..." {
		t.Errorf("unexpected first message: %v", messages)
	}
	if messages[len(messages)-1] != "Merge complete!" {
		t.Errorf("unexpected last message: %v", messages)
	}
	if lastPercentage != 100 {
		t.Errorf("expected the run to end at 100%%, got %d", lastPercentage)
	}

	found := false
	for _, m := range messages {
		if m == "Adding 1 new figures..." {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a figure stage message, got %v", messages)
	}
}

func TestRunRejectsConcurrentMerge(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	source := &archive.Dataset{
		Figures: []*store.Figure{
			{ID: 1, Name: "Mirage", Series: "Transformers", Manufacturer: "Hasbro"},
		},
	}
	plan := &Plan{NewFigures: source.Figures}

	e.running.Store(true)
	updates := e.Run(context.Background(), source, plan)
	update, ok := <-updates
	if !ok || update.Err == nil {
		t.Fatal("expected an immediate error while another merge runs")
	}
	if _, ok := <-updates; ok {
		t.Error("expected the channel to close after the error")
	}

	e.running.Store(false)
	sawResult := false
	for update := range e.Run(context.Background(), source, plan) {
		if update.Err != nil {
			t.Fatalf("unexpected error after release: %v", update.Err)
		}
		if update.Result != nil {
			sawResult = true
		}
	}
	if !sawResult {
		t.Error("expected a successful run after the first merge finished")
	}
}
