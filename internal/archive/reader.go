package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
)

// BundleRoot is the fixed top-level directory inside the photo bundle
const BundleRoot = "photos"

// Dataset holds the rows parsed from an archive plus the location of its
// extracted photo files
type Dataset struct {
	Figures  []*store.Figure
	Photos   []*store.Photo
	Wishlist []*store.WishlistItem

	// PhotosDir is where the photo bundle was extracted, empty when the
	// archive carried none
	PhotosDir string
}

// PhotoSourcePath returns the extracted file behind a photo row, or ""
// when the archive had no bundle. Rows reference paths from the machine
// that produced the archive, so only the base name is meaningful here.
func (d *Dataset) PhotoSourcePath(p *store.Photo) string {
	if d.PhotosDir == "" {
		return ""
	}
	return filepath.Join(d.PhotosDir, BaseName(p.FilePath))
}

// BaseName returns the final element of an exported file path. It handles
// both separator conventions, archives written on Windows carry backslash
// paths.
func BaseName(p string) string {
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}

// Archive is an opened backup container
type Archive struct {
	zr *zip.ReadCloser

	figuresName  string
	photosName   string
	wishlistName string
	bundleName   string
	manifestName string
}

// Open opens a backup archive and validates its member names. Any member
// whose name is absolute or escapes the extraction root is rejected up
// front, archives can come from untrusted sources.
func Open(archivePath string) (*Archive, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	a := &Archive{zr: zr}
	for _, f := range zr.File {
		name := strings.TrimSuffix(f.Name, "/")
		if name == "" {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			zr.Close()
			return nil, fmt.Errorf("unsafe path %q in archive: %w", f.Name, util.ErrArchiveFormat)
		}

		base := path.Base(strings.ReplaceAll(name, "\\", "/"))
		switch {
		case base == ManifestName:
			a.manifestName = f.Name
		case strings.HasSuffix(base, ".tar.gz"):
			if a.bundleName == "" {
				a.bundleName = f.Name
			}
		case strings.HasSuffix(base, ".csv"):
			switch {
			case strings.HasPrefix(base, "photos_"):
				if a.photosName == "" {
					a.photosName = f.Name
				}
			case strings.HasPrefix(base, "wishlist_"):
				if a.wishlistName == "" {
					a.wishlistName = f.Name
				}
			default:
				if a.figuresName == "" {
					a.figuresName = f.Name
				}
			}
		}
	}

	return a, nil
}

// Close closes the underlying zip file
func (a *Archive) Close() error {
	return a.zr.Close()
}

// HasBundle reports whether the archive carries photo files
func (a *Archive) HasBundle() bool {
	return a.bundleName != ""
}

// Manifest parses the archive's manifest, or returns nil when the archive
// has none
func (a *Archive) Manifest() (*Manifest, error) {
	if a.manifestName == "" {
		return nil, nil
	}

	rc, err := a.open(a.manifestName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return ParseManifest(rc)
}

// ReadDataset parses the archive's tabular exports. The figures export is
// required, its absence means this is not a collection backup. Photo and
// wishlist exports are optional and read as zero records when missing.
func (a *Archive) ReadDataset() (*Dataset, error) {
	if a.figuresName == "" {
		return nil, fmt.Errorf("no data found in archive: %w", util.ErrArchiveFormat)
	}

	ds := &Dataset{}

	rc, err := a.open(a.figuresName)
	if err != nil {
		return nil, err
	}
	ds.Figures, err = ReadFiguresCSV(rc)
	rc.Close()
	if err != nil {
		return nil, err
	}

	if a.photosName != "" {
		rc, err := a.open(a.photosName)
		if err != nil {
			return nil, err
		}
		ds.Photos, err = ReadPhotosCSV(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
	}

	if a.wishlistName != "" {
		rc, err := a.open(a.wishlistName)
		if err != nil {
			return nil, err
		}
		ds.Wishlist, err = ReadWishlistCSV(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// ExtractBundle unpacks the photo bundle into destDir, stripping the
// fixed bundle root so files land directly in the target directory.
// Returns the number of files written, zero when the archive has no
// bundle. Every entry is containment-checked before anything is written;
// entries that are neither files nor directories are skipped.
func (a *Archive) ExtractBundle(destDir string) (int, error) {
	if a.bundleName == "" {
		return 0, nil
	}

	rc, err := a.open(a.bundleName)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	gz, err := gzip.NewReader(rc)
	if err != nil {
		return 0, fmt.Errorf("failed to read photo bundle: %w", err)
	}
	defer gz.Close()

	extracted := 0
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return extracted, fmt.Errorf("failed to read photo bundle: %w", err)
		}

		name := strings.TrimSuffix(filepath.ToSlash(header.Name), "/")
		name = strings.TrimPrefix(name, BundleRoot+"/")
		if name == "" || name == BundleRoot || name == "." {
			continue
		}

		rel := filepath.FromSlash(name)
		if !filepath.IsLocal(rel) {
			return extracted, fmt.Errorf("path traversal in photo bundle entry %q: %w",
				header.Name, util.ErrArchiveFormat)
		}
		destPath := filepath.Join(destDir, rel)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := util.EnsureDir(destPath); err != nil {
				return extracted, err
			}
		case tar.TypeReg:
			if err := util.EnsureDir(filepath.Dir(destPath)); err != nil {
				return extracted, err
			}
			if err := extractFile(tr, destPath); err != nil {
				return extracted, err
			}
			extracted++
		default:
			// Symlinks and special files have no business in a photo
			// bundle and could alias paths outside destDir
			continue
		}
	}

	return extracted, nil
}

func extractFile(r io.Reader, destPath string) error {
	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	_, err = io.Copy(file, r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to extract %s: %w", destPath, err)
	}

	return nil
}

func (a *Archive) open(name string) (io.ReadCloser, error) {
	for _, f := range a.zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open archive member %s: %w", name, err)
			}
			return rc, nil
		}
	}
	return nil, fmt.Errorf("archive member %s vanished: %w", name, util.ErrArchiveFormat)
}
