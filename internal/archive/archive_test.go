package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
)

func writeTestArchive(t *testing.T, dir string, in *ExportInput, now time.Time) (string, *Manifest) {
	t.Helper()

	archivePath := filepath.Join(dir, "backup_test.zip")
	file, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("failed to create archive file: %v", err)
	}
	defer file.Close()

	manifest, err := Write(file, in, now)
	if err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}

	return archivePath, manifest
}

func TestArchiveRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "afc-archive-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Photo files, one nested to prove relative paths survive
	photosDir := filepath.Join(tmpDir, "photos")
	if err := os.MkdirAll(filepath.Join(photosDir, "sub"), 0755); err != nil {
		t.Fatalf("failed to create photos dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(photosDir, "figure_1_1_op.jpg"), []byte("front shot"), 0644); err != nil {
		t.Fatalf("failed to write photo: %v", err)
	}
	if err := os.WriteFile(filepath.Join(photosDir, "sub", "figure_1_2_op.jpg"), []byte("back shot"), 0644); err != nil {
		t.Fatalf("failed to write photo: %v", err)
	}

	in := &ExportInput{
		Figures: []*store.Figure{
			{
				ID: 1, Name: "Optimus Prime", Series: "Transformers", Wave: "Wave 1",
				Manufacturer: "Hasbro", Year: 1984, Scale: "6 inch", Condition: "Mint",
				PurchasePrice: 29.99, CurrentValue: 120.00, Location: "Shelf A",
				Notes: "G1, \"near mint\" box", CreatedAt: time.Now(), UpdatedAt: time.Now(),
				PhotoCount: 2, PrimaryPhoto: filepath.Join(photosDir, "figure_1_1_op.jpg"),
			},
			{ID: 2, Name: "Ratchet"},
		},
		Photos: []*store.Photo{
			{ID: 1, FigureID: 1, FilePath: filepath.Join(photosDir, "figure_1_1_op.jpg"), Caption: "Front", IsPrimary: true, UploadDate: time.Now()},
			{ID: 2, FigureID: 1, FilePath: filepath.Join(photosDir, "sub", "figure_1_2_op.jpg")},
		},
		Wishlist: []*store.WishlistItem{
			{ID: 1, Name: "Unicron", TargetPrice: 575.00, Priority: "high"},
		},
		PhotosDir: photosDir,
	}

	now := time.Date(2026, 8, 24, 15, 30, 45, 0, time.UTC)
	archivePath, manifest := writeTestArchive(t, tmpDir, in, now)

	if manifest.FiguresCSV != "action_figures_20260824_153045.csv" {
		t.Errorf("unexpected figures member name: %s", manifest.FiguresCSV)
	}
	if manifest.PhotosBundle != "photos_20260824_153045.tar.gz" {
		t.Errorf("unexpected bundle member name: %s", manifest.PhotosBundle)
	}
	if manifest.BackupID == "" {
		t.Error("expected a backup ID in the manifest")
	}

	a, err := Open(archivePath)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer a.Close()

	parsed, err := a.Manifest()
	if err != nil {
		t.Fatalf("failed to parse manifest: %v", err)
	}
	if parsed == nil {
		t.Fatal("expected a manifest in the archive")
	}
	if parsed.BackupID != manifest.BackupID {
		t.Errorf("expected backup ID %s, got %s", manifest.BackupID, parsed.BackupID)
	}
	if parsed.CreatedAt.Format(timestampLayout) != now.Format(timestampLayout) {
		t.Errorf("expected created %s, got %s", now.Format(timestampLayout), parsed.CreatedAt.Format(timestampLayout))
	}
	if parsed.WishlistCSV != manifest.WishlistCSV {
		t.Errorf("expected wishlist member %s, got %s", manifest.WishlistCSV, parsed.WishlistCSV)
	}

	ds, err := a.ReadDataset()
	if err != nil {
		t.Fatalf("failed to read dataset: %v", err)
	}

	if len(ds.Figures) != 2 {
		t.Fatalf("expected 2 figures, got %d", len(ds.Figures))
	}
	prime := ds.Figures[0]
	if prime.Name != "Optimus Prime" || prime.Year != 1984 || prime.PurchasePrice != 29.99 {
		t.Errorf("figure fields did not survive the round trip: %+v", prime)
	}
	if prime.Notes != "G1, \"near mint\" box" {
		t.Errorf("quoted notes did not survive: %q", prime.Notes)
	}
	if prime.ID != 1 {
		t.Errorf("expected source ID 1, got %d", prime.ID)
	}
	if ds.Figures[1].Year != 0 || ds.Figures[1].PurchasePrice != 0 {
		t.Errorf("expected zero numerics for sparse figure, got %+v", ds.Figures[1])
	}

	if len(ds.Photos) != 2 {
		t.Fatalf("expected 2 photo rows, got %d", len(ds.Photos))
	}
	if !ds.Photos[0].IsPrimary || ds.Photos[0].Caption != "Front" {
		t.Errorf("photo flags did not survive: %+v", ds.Photos[0])
	}
	if ds.Photos[0].FigureID != 1 {
		t.Errorf("expected photo to reference source figure 1, got %d", ds.Photos[0].FigureID)
	}

	if len(ds.Wishlist) != 1 || ds.Wishlist[0].Name != "Unicron" || ds.Wishlist[0].TargetPrice != 575.00 {
		t.Errorf("wishlist did not survive the round trip: %+v", ds.Wishlist)
	}

	// Extract the bundle and verify contents land under the target dir
	extractDir := filepath.Join(tmpDir, "extracted")
	count, err := a.ExtractBundle(extractDir)
	if err != nil {
		t.Fatalf("failed to extract bundle: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 extracted files, got %d", count)
	}

	data, err := os.ReadFile(filepath.Join(extractDir, "figure_1_1_op.jpg"))
	if err != nil {
		t.Fatalf("failed to read extracted photo: %v", err)
	}
	if string(data) != "front shot" {
		t.Errorf("extracted photo content mismatch: %q", data)
	}
	if _, err := os.Stat(filepath.Join(extractDir, "sub", "figure_1_2_op.jpg")); err != nil {
		t.Errorf("expected nested photo to be extracted: %v", err)
	}
}

func TestArchiveEmptyCollection(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "afc-archive-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	archivePath, manifest := writeTestArchive(t, tmpDir, &ExportInput{}, now)

	if manifest.PhotosCSV != "" || manifest.PhotosBundle != "" || manifest.WishlistCSV != "" {
		t.Errorf("expected optional members to be skipped, got %+v", manifest)
	}

	a, err := Open(archivePath)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer a.Close()

	if a.HasBundle() {
		t.Error("expected no photo bundle for an empty collection")
	}

	ds, err := a.ReadDataset()
	if err != nil {
		t.Fatalf("expected an empty collection to read back cleanly: %v", err)
	}
	if len(ds.Figures) != 0 || len(ds.Photos) != 0 || len(ds.Wishlist) != 0 {
		t.Errorf("expected empty dataset, got %d figures, %d photos, %d wishlist",
			len(ds.Figures), len(ds.Photos), len(ds.Wishlist))
	}

	parsed, err := a.Manifest()
	if err != nil {
		t.Fatalf("failed to parse manifest: %v", err)
	}
	if parsed.PhotosBundle != "" {
		t.Errorf("expected manifest fallback to read as absent, got %q", parsed.PhotosBundle)
	}
}

func TestReadDatasetNoFiguresExport(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "afc-archive-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// A zip with only a README is not a collection backup
	archivePath := filepath.Join(tmpDir, "not-a-backup.zip")
	file, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	zw := zip.NewWriter(file)
	member, err := zw.Create("README.txt")
	if err != nil {
		t.Fatalf("failed to create member: %v", err)
	}
	if _, err := member.Write([]byte("nothing here")); err != nil {
		t.Fatalf("failed to write member: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	file.Close()

	a, err := Open(archivePath)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer a.Close()

	_, err = a.ReadDataset()
	if !errors.Is(err, util.ErrArchiveFormat) {
		t.Fatalf("expected ErrArchiveFormat, got %v", err)
	}
	if !strings.Contains(err.Error(), "no data found in archive") {
		t.Errorf("expected 'no data found in archive', got %q", err.Error())
	}
}

func TestOpenRejectsUnsafeMemberNames(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "afc-archive-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	for _, unsafe := range []string{"../evil.csv", "/etc/passwd"} {
		archivePath := filepath.Join(tmpDir, "evil.zip")
		file, err := os.Create(archivePath)
		if err != nil {
			t.Fatalf("failed to create zip: %v", err)
		}
		zw := zip.NewWriter(file)
		member, err := zw.CreateHeader(&zip.FileHeader{Name: unsafe})
		if err != nil {
			t.Fatalf("failed to create member: %v", err)
		}
		if _, err := member.Write([]byte("x")); err != nil {
			t.Fatalf("failed to write member: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("failed to close zip: %v", err)
		}
		file.Close()

		_, err = Open(archivePath)
		if !errors.Is(err, util.ErrArchiveFormat) {
			t.Errorf("member %q: expected ErrArchiveFormat, got %v", unsafe, err)
		}
	}
}

func TestExtractBundleRejectsTraversal(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "afc-archive-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Build a bundle whose entry tries to climb out of the photos root
	var tarBuf bytes.Buffer
	gz := gzip.NewWriter(&tarBuf)
	tw := tar.NewWriter(gz)
	payload := []byte("gotcha")
	if err := tw.WriteHeader(&tar.Header{
		Name:     "photos/../../escape.jpg",
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     int64(len(payload)),
	}); err != nil {
		t.Fatalf("failed to write tar header: %v", err)
	}
	if _, err := tw.Write(payload); err != nil {
		t.Fatalf("failed to write tar payload: %v", err)
	}
	tw.Close()
	gz.Close()

	archivePath := filepath.Join(tmpDir, "traversal.zip")
	file, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	zw := zip.NewWriter(file)
	member, err := zw.Create("photos_20260101_000000.tar.gz")
	if err != nil {
		t.Fatalf("failed to create member: %v", err)
	}
	if _, err := member.Write(tarBuf.Bytes()); err != nil {
		t.Fatalf("failed to write member: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	file.Close()

	a, err := Open(archivePath)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer a.Close()

	destDir := filepath.Join(tmpDir, "safe", "photos")
	if err := os.MkdirAll(destDir, 0755); err != nil {
		t.Fatalf("failed to create dest dir: %v", err)
	}

	_, err = a.ExtractBundle(destDir)
	if !errors.Is(err, util.ErrArchiveFormat) {
		t.Fatalf("expected ErrArchiveFormat for traversal entry, got %v", err)
	}

	// Nothing may have escaped the destination root
	if _, err := os.Stat(filepath.Join(tmpDir, "safe", "escape.jpg")); !os.IsNotExist(err) {
		t.Error("traversal entry escaped the destination directory")
	}
	entries, err := os.ReadDir(destDir)
	if err != nil {
		t.Fatalf("failed to list dest dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected destination to stay empty, found %d entries", len(entries))
	}
}

func TestPhotoSourcePath(t *testing.T) {
	ds := &Dataset{PhotosDir: "/tmp/extracted"}

	// Paths recorded on the producing machine reduce to their base name
	p := &store.Photo{FilePath: "/home/someone/.local/share/afc/photos/figure_3_1_img.jpg"}
	if got := ds.PhotoSourcePath(p); got != filepath.Join("/tmp/extracted", "figure_3_1_img.jpg") {
		t.Errorf("unexpected source path: %s", got)
	}

	// Windows-produced archives carry backslash paths
	p = &store.Photo{FilePath: `C:\Users\someone\photos\figure_9_2_img.png`}
	if got := ds.PhotoSourcePath(p); got != filepath.Join("/tmp/extracted", "figure_9_2_img.png") {
		t.Errorf("unexpected source path for windows input: %s", got)
	}

	// No bundle means no source files
	empty := &Dataset{}
	if got := empty.PhotoSourcePath(p); got != "" {
		t.Errorf("expected empty path without a bundle, got %s", got)
	}
}

func TestReadFiguresCSVBadNumeric(t *testing.T) {
	csv := "id,name,year\n1,Optimus Prime,not-a-year\n"
	_, err := ReadFiguresCSV(strings.NewReader(csv))
	if !errors.Is(err, util.ErrArchiveFormat) {
		t.Fatalf("expected ErrArchiveFormat for bad numeric, got %v", err)
	}
}

func TestReadFiguresCSVMissingNameColumn(t *testing.T) {
	csv := "id,series\n1,Transformers\n"
	_, err := ReadFiguresCSV(strings.NewReader(csv))
	if !errors.Is(err, util.ErrArchiveFormat) {
		t.Fatalf("expected ErrArchiveFormat for missing name column, got %v", err)
	}
}
