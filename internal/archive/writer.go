package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/franz/figure-curator/internal/store"
)

// ExportInput is the collection snapshot serialized into a backup archive
type ExportInput struct {
	Figures  []*store.Figure
	Photos   []*store.Photo
	Wishlist []*store.WishlistItem

	// PhotosDir is the managed photos directory. A missing or empty
	// directory produces an archive without a photo bundle.
	PhotosDir string
}

// Write streams a backup archive to w and returns its manifest.
//
// The container is a zip holding a figures CSV (always present, header-only
// for an empty collection so an importer can tell "empty" from "not a
// backup"), a photos CSV and wishlist CSV when there are rows, a tar.gz
// bundle of the photos directory rooted at "photos/", and README.txt.
func Write(w io.Writer, in *ExportInput, now time.Time) (*Manifest, error) {
	timestamp := now.Format("20060102_150405")
	manifest := NewManifest(now)

	zw := zip.NewWriter(w)

	// Figures CSV
	manifest.FiguresCSV = fmt.Sprintf("action_figures_%s.csv", timestamp)
	member, err := zw.Create(manifest.FiguresCSV)
	if err != nil {
		return nil, fmt.Errorf("failed to create figures member: %w", err)
	}
	if err := WriteFiguresCSV(member, in.Figures); err != nil {
		return nil, err
	}

	// Photo metadata CSV
	if len(in.Photos) > 0 {
		manifest.PhotosCSV = fmt.Sprintf("photos_%s.csv", timestamp)
		member, err := zw.Create(manifest.PhotosCSV)
		if err != nil {
			return nil, fmt.Errorf("failed to create photos member: %w", err)
		}
		if err := WritePhotosCSV(member, in.Photos); err != nil {
			return nil, err
		}
	}

	// Photo files bundle
	photoFiles, err := collectPhotoFiles(in.PhotosDir)
	if err != nil {
		return nil, err
	}
	if len(photoFiles) > 0 {
		manifest.PhotosBundle = fmt.Sprintf("photos_%s.tar.gz", timestamp)
		member, err := zw.Create(manifest.PhotosBundle)
		if err != nil {
			return nil, fmt.Errorf("failed to create bundle member: %w", err)
		}
		if err := writeBundle(member, in.PhotosDir, photoFiles); err != nil {
			return nil, err
		}
	}

	// Wishlist CSV
	if len(in.Wishlist) > 0 {
		manifest.WishlistCSV = fmt.Sprintf("wishlist_%s.csv", timestamp)
		member, err := zw.Create(manifest.WishlistCSV)
		if err != nil {
			return nil, fmt.Errorf("failed to create wishlist member: %w", err)
		}
		if err := WriteWishlistCSV(member, in.Wishlist); err != nil {
			return nil, err
		}
	}

	// Manifest goes last so it can describe every member
	member, err = zw.Create(ManifestName)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest member: %w", err)
	}
	if _, err := io.WriteString(member, manifest.Render()); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return manifest, nil
}

// collectPhotoFiles lists the regular files under the photos directory.
// A missing directory is an empty collection, not an error.
func collectPhotoFiles(root string) ([]string, error) {
	if root == "" {
		return nil, nil
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, nil
	}

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan photos directory: %w", err)
	}

	return files, nil
}

// writeBundle writes the photo files as a tar.gz rooted at BundleRoot,
// preserving paths relative to the photos directory
func writeBundle(w io.Writer, photosDir string, files []string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for _, path := range files {
		rel, err := filepath.Rel(photosDir, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to build tar header for %s: %w", path, err)
		}
		header.Name = BundleRoot + "/" + filepath.ToSlash(rel)

		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", path, err)
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		_, err = io.Copy(tw, file)
		file.Close()
		if err != nil {
			return fmt.Errorf("failed to archive %s: %w", path, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize photo bundle: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize bundle compression: %w", err)
	}

	return nil
}
