package archive

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ManifestName is the manifest member every archive carries
const ManifestName = "README.txt"

// Manifest describes what a backup archive contains. It is written as a
// human-readable text file so a backup remains useful even without the
// application.
type Manifest struct {
	BackupID     string
	CreatedAt    time.Time
	FiguresCSV   string // empty when the collection had no figures
	PhotosCSV    string
	PhotosBundle string
	WishlistCSV  string
}

// NewManifest creates a manifest stamped with a fresh backup ID
func NewManifest(now time.Time) *Manifest {
	return &Manifest{
		BackupID:  uuid.NewString(),
		CreatedAt: now,
	}
}

// Render produces the manifest text
func (m *Manifest) Render() string {
	var b strings.Builder

	b.WriteString("Action Figure Collection Backup\n")
	fmt.Fprintf(&b, "Backup ID: %s\n", m.BackupID)
	fmt.Fprintf(&b, "Created: %s\n", m.CreatedAt.Format(timestampLayout))
	b.WriteString("\n")

	b.WriteString("This backup contains:\n")
	fmt.Fprintf(&b, "- Database export: %s\n", orFallback(m.FiguresCSV, "No figures in collection"))
	fmt.Fprintf(&b, "- Photo metadata: %s\n", orFallback(m.PhotosCSV, "No photo metadata"))
	fmt.Fprintf(&b, "- Photos archive: %s\n", orFallback(m.PhotosBundle, "No photos in collection"))
	fmt.Fprintf(&b, "- Wishlist export: %s\n", orFallback(m.WishlistCSV, "No wishlist items"))
	b.WriteString("\n")

	b.WriteString("To restore:\n")
	b.WriteString("1. Run 'afc restore <this file>'\n")
	b.WriteString("2. The database and photo files are rebuilt automatically\n")
	b.WriteString("3. Or merge into an existing collection with 'afc merge apply <this file>'\n")

	return b.String()
}

// ParseManifest reads a manifest back. Unknown lines are ignored so older
// or hand-edited manifests still parse.
func ParseManifest(r io.Reader) (*Manifest, error) {
	m := &Manifest{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "Backup ID: "):
			m.BackupID = strings.TrimPrefix(line, "Backup ID: ")
		case strings.HasPrefix(line, "Created: "):
			created, err := time.Parse(timestampLayout, strings.TrimPrefix(line, "Created: "))
			if err == nil {
				m.CreatedAt = created
			}
		case strings.HasPrefix(line, "- Database export: "):
			m.FiguresCSV = presentValue(strings.TrimPrefix(line, "- Database export: "))
		case strings.HasPrefix(line, "- Photo metadata: "):
			m.PhotosCSV = presentValue(strings.TrimPrefix(line, "- Photo metadata: "))
		case strings.HasPrefix(line, "- Photos archive: "):
			m.PhotosBundle = presentValue(strings.TrimPrefix(line, "- Photos archive: "))
		case strings.HasPrefix(line, "- Wishlist export: "):
			m.WishlistCSV = presentValue(strings.TrimPrefix(line, "- Wishlist export: "))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return m, nil
}

func orFallback(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// presentValue maps the "No figures in collection" style fallbacks back
// to an absent payload
func presentValue(value string) string {
	if strings.HasPrefix(value, "No ") {
		return ""
	}
	return value
}
