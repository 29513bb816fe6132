package archive

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
)

// Column layouts of the tabular exports. Readers map columns by header
// name, so archives produced by older layouts still import.
var (
	figureColumns = []string{
		"id", "name", "series", "wave", "manufacturer", "year", "scale",
		"condition", "purchase_price", "current_value", "location", "notes",
		"created_at", "updated_at", "photo_count", "primary_photo",
	}
	photoColumns = []string{
		"id", "figure_id", "file_path", "caption", "is_primary", "upload_date",
	}
	wishlistColumns = []string{
		"id", "name", "series", "wave", "manufacturer", "year", "scale",
		"target_price", "priority", "notes", "created_at", "updated_at",
	}
)

const timestampLayout = "2006-01-02 15:04:05"

// WriteFiguresCSV writes the figure export with a header row
func WriteFiguresCSV(w io.Writer, figures []*store.Figure) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(figureColumns); err != nil {
		return fmt.Errorf("failed to write figures header: %w", err)
	}

	for _, f := range figures {
		record := []string{
			strconv.FormatInt(f.ID, 10),
			f.Name,
			f.Series,
			f.Wave,
			f.Manufacturer,
			formatInt(f.Year),
			f.Scale,
			f.Condition,
			formatFloat(f.PurchasePrice),
			formatFloat(f.CurrentValue),
			f.Location,
			f.Notes,
			formatTimestamp(f.CreatedAt),
			formatTimestamp(f.UpdatedAt),
			strconv.Itoa(f.PhotoCount),
			f.PrimaryPhoto,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write figure row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadFiguresCSV parses a figure export. The name column is required;
// unknown columns are ignored and missing optional columns read as zero.
func ReadFiguresCSV(r io.Reader) ([]*store.Figure, error) {
	rows, err := readTable(r, "figures")
	if err != nil {
		return nil, err
	}
	if !rows.hasColumn("name") {
		return nil, fmt.Errorf("figures export has no name column: %w", util.ErrArchiveFormat)
	}

	var figures []*store.Figure
	for rows.next() {
		f := &store.Figure{
			Name:         rows.text("name"),
			Series:       rows.text("series"),
			Wave:         rows.text("wave"),
			Manufacturer: rows.text("manufacturer"),
			Scale:        rows.text("scale"),
			Condition:    rows.text("condition"),
			Location:     rows.text("location"),
			Notes:        rows.text("notes"),
			PrimaryPhoto: rows.text("primary_photo"),
		}
		f.ID = rows.integer("id")
		f.Year = int(rows.integer("year"))
		f.PurchasePrice = rows.float("purchase_price")
		f.CurrentValue = rows.float("current_value")
		f.PhotoCount = int(rows.integer("photo_count"))
		figures = append(figures, f)
	}
	if err := rows.err(); err != nil {
		return nil, err
	}

	return figures, nil
}

// WritePhotosCSV writes the photo metadata export with a header row
func WritePhotosCSV(w io.Writer, photos []*store.Photo) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(photoColumns); err != nil {
		return fmt.Errorf("failed to write photos header: %w", err)
	}

	for _, p := range photos {
		primary := "0"
		if p.IsPrimary {
			primary = "1"
		}
		record := []string{
			strconv.FormatInt(p.ID, 10),
			strconv.FormatInt(p.FigureID, 10),
			p.FilePath,
			p.Caption,
			primary,
			formatTimestamp(p.UploadDate),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write photo row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadPhotosCSV parses a photo metadata export
func ReadPhotosCSV(r io.Reader) ([]*store.Photo, error) {
	rows, err := readTable(r, "photos")
	if err != nil {
		return nil, err
	}

	var photos []*store.Photo
	for rows.next() {
		p := &store.Photo{
			FilePath: rows.text("file_path"),
			Caption:  rows.text("caption"),
		}
		p.ID = rows.integer("id")
		p.FigureID = rows.integer("figure_id")
		p.IsPrimary = rows.boolean("is_primary")
		photos = append(photos, p)
	}
	if err := rows.err(); err != nil {
		return nil, err
	}

	return photos, nil
}

// WriteWishlistCSV writes the wishlist export with a header row
func WriteWishlistCSV(w io.Writer, items []*store.WishlistItem) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(wishlistColumns); err != nil {
		return fmt.Errorf("failed to write wishlist header: %w", err)
	}

	for _, item := range items {
		record := []string{
			strconv.FormatInt(item.ID, 10),
			item.Name,
			item.Series,
			item.Wave,
			item.Manufacturer,
			formatInt(item.Year),
			item.Scale,
			formatFloat(item.TargetPrice),
			item.Priority,
			item.Notes,
			formatTimestamp(item.CreatedAt),
			formatTimestamp(item.UpdatedAt),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write wishlist row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadWishlistCSV parses a wishlist export
func ReadWishlistCSV(r io.Reader) ([]*store.WishlistItem, error) {
	rows, err := readTable(r, "wishlist")
	if err != nil {
		return nil, err
	}

	var items []*store.WishlistItem
	for rows.next() {
		item := &store.WishlistItem{
			Name:         rows.text("name"),
			Series:       rows.text("series"),
			Wave:         rows.text("wave"),
			Manufacturer: rows.text("manufacturer"),
			Scale:        rows.text("scale"),
			Priority:     rows.text("priority"),
			Notes:        rows.text("notes"),
		}
		item.ID = rows.integer("id")
		item.Year = int(rows.integer("year"))
		item.TargetPrice = rows.float("target_price")
		items = append(items, item)
	}
	if err := rows.err(); err != nil {
		return nil, err
	}

	return items, nil
}

// table iterates a CSV export, addressing fields by header name
type table struct {
	name    string
	reader  *csv.Reader
	columns map[string]int
	current []string
	readErr error
	rowNum  int
}

func readTable(r io.Reader, name string) (*table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s export is empty: %w", name, util.ErrArchiveFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", name, err)
	}

	columns := make(map[string]int, len(header))
	for i, col := range header {
		columns[strings.TrimSpace(col)] = i
	}

	return &table{name: name, reader: cr, columns: columns}, nil
}

func (t *table) hasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

func (t *table) next() bool {
	if t.readErr != nil {
		return false
	}

	record, err := t.reader.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		t.readErr = fmt.Errorf("failed to read %s row %d: %w", t.name, t.rowNum+1, err)
		return false
	}

	t.current = record
	t.rowNum++
	return true
}

func (t *table) err() error {
	return t.readErr
}

func (t *table) text(column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(t.current) {
		return ""
	}
	return t.current[i]
}

func (t *table) integer(column string) int64 {
	v := strings.TrimSpace(t.text(column))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		t.setErr(column, v)
		return 0
	}
	return n
}

func (t *table) float(column string) float64 {
	v := strings.TrimSpace(t.text(column))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		t.setErr(column, v)
		return 0
	}
	return f
}

func (t *table) boolean(column string) bool {
	v := strings.TrimSpace(t.text(column))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		t.setErr(column, v)
		return false
	}
	return b
}

func (t *table) setErr(column, value string) {
	if t.readErr == nil {
		t.readErr = fmt.Errorf("%s row %d: bad %s value %q: %w",
			t.name, t.rowNum, column, value, util.ErrArchiveFormat)
	}
}

func formatInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func formatFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}
