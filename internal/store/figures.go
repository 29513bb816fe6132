package store

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/franz/figure-curator/internal/util"
)

// figureSortColumns maps UI sort keys to database columns.
// Unknown keys fall back to the figure name.
var figureSortColumns = map[string]string{
	"name":         "af.name",
	"series":       "af.series",
	"wave":         "af.wave",
	"manufacturer": "af.manufacturer",
	"year":         "af.year",
	"condition":    "af.condition",
	"photos":       "photo_count",
}

func figureOrderClause(sortColumn, sortOrder string) string {
	column, ok := figureSortColumns[strings.ToLower(sortColumn)]
	if !ok {
		column = "af.name"
	}
	order := "ASC"
	if strings.EqualFold(sortOrder, "DESC") {
		order = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s", column, order)
}

// AddFigure inserts a new figure and sets its ID.
// Timestamps are assigned by the database.
func (s *Store) AddFigure(f *Figure) error {
	result, err := s.db.Exec(`
		INSERT INTO action_figures
			(name, series, wave, manufacturer, year, scale, condition,
			 purchase_price, current_value, location, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.Name, f.Series, f.Wave, f.Manufacturer, f.Year, f.Scale, f.Condition,
		f.PurchasePrice, f.CurrentValue, f.Location, f.Notes)

	if err != nil {
		return fmt.Errorf("failed to insert figure: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get figure ID: %w", err)
	}
	f.ID = id

	return nil
}

// GetFigure retrieves a figure by ID, or nil if it does not exist
func (s *Store) GetFigure(id int64) (*Figure, error) {
	f := &Figure{}
	err := s.db.QueryRow(`
		SELECT id, name, COALESCE(series, ''), COALESCE(wave, ''),
		       COALESCE(manufacturer, ''), COALESCE(year, 0),
		       COALESCE(scale, ''), COALESCE(condition, ''),
		       COALESCE(purchase_price, 0), COALESCE(current_value, 0),
		       COALESCE(location, ''), COALESCE(notes, ''),
		       created_at, updated_at
		FROM action_figures WHERE id = ?
	`, id).Scan(
		&f.ID, &f.Name, &f.Series, &f.Wave,
		&f.Manufacturer, &f.Year,
		&f.Scale, &f.Condition,
		&f.PurchasePrice, &f.CurrentValue,
		&f.Location, &f.Notes,
		&f.CreatedAt, &f.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get figure: %w", err)
	}

	return f, nil
}

// GetAllFigures retrieves every figure ordered by ID, with photo counts
// and primary photo paths filled in
func (s *Store) GetAllFigures() ([]*Figure, error) {
	return s.queryFigures("", "ORDER BY af.id")
}

// ListFigures retrieves every figure sorted by the given column and order
func (s *Store) ListFigures(sortColumn, sortOrder string) ([]*Figure, error) {
	return s.queryFigures("", figureOrderClause(sortColumn, sortOrder))
}

// SearchFigures retrieves figures whose name, series, manufacturer or wave
// contains the search term
func (s *Store) SearchFigures(term, sortColumn, sortOrder string) ([]*Figure, error) {
	where := "WHERE af.name LIKE ? OR af.series LIKE ? OR af.manufacturer LIKE ? OR af.wave LIKE ?"
	pattern := "%" + term + "%"
	return s.queryFigures(where, figureOrderClause(sortColumn, sortOrder),
		pattern, pattern, pattern, pattern)
}

func (s *Store) queryFigures(where, orderBy string, args ...any) ([]*Figure, error) {
	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT af.id, af.name, COALESCE(af.series, ''), COALESCE(af.wave, ''),
		       COALESCE(af.manufacturer, ''), COALESCE(af.year, 0),
		       COALESCE(af.scale, ''), COALESCE(af.condition, ''),
		       COALESCE(af.purchase_price, 0), COALESCE(af.current_value, 0),
		       COALESCE(af.location, ''), COALESCE(af.notes, ''),
		       af.created_at, af.updated_at,
		       (SELECT COUNT(*) FROM photos p WHERE p.figure_id = af.id) AS photo_count,
		       COALESCE((SELECT p.file_path FROM photos p
		                 WHERE p.figure_id = af.id AND p.is_primary = 1 LIMIT 1), '')
		FROM action_figures af
		%s
		%s
	`, where, orderBy), args...)

	if err != nil {
		return nil, fmt.Errorf("failed to query figures: %w", err)
	}
	defer rows.Close()

	var figures []*Figure
	for rows.Next() {
		f := &Figure{}
		err := rows.Scan(
			&f.ID, &f.Name, &f.Series, &f.Wave,
			&f.Manufacturer, &f.Year,
			&f.Scale, &f.Condition,
			&f.PurchasePrice, &f.CurrentValue,
			&f.Location, &f.Notes,
			&f.CreatedAt, &f.UpdatedAt,
			&f.PhotoCount, &f.PrimaryPhoto,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan figure: %w", err)
		}
		figures = append(figures, f)
	}

	return figures, rows.Err()
}

// UpdateFigure updates an existing figure by ID
func (s *Store) UpdateFigure(f *Figure) error {
	result, err := s.db.Exec(`
		UPDATE action_figures SET
			name = ?, series = ?, wave = ?, manufacturer = ?, year = ?,
			scale = ?, condition = ?, purchase_price = ?, current_value = ?,
			location = ?, notes = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, f.Name, f.Series, f.Wave, f.Manufacturer, f.Year,
		f.Scale, f.Condition, f.PurchasePrice, f.CurrentValue,
		f.Location, f.Notes, f.ID)

	if err != nil {
		return fmt.Errorf("failed to update figure: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("figure %d: %w", f.ID, util.ErrNotFound)
	}

	return nil
}

// DeleteFigure removes a figure, its photo rows and its photo files.
// Photo files that cannot be removed are left behind.
func (s *Store) DeleteFigure(id int64) error {
	photos, err := s.GetFigurePhotos(id)
	if err != nil {
		return err
	}

	err = s.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM photos WHERE figure_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete figure photos: %w", err)
		}

		result, err := tx.Exec("DELETE FROM action_figures WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete figure: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check delete result: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("figure %d: %w", id, util.ErrNotFound)
		}

		return nil
	})
	if err != nil {
		return err
	}

	// Remove files only after the rows are gone. A file in use or already
	// deleted is not an error.
	for _, photo := range photos {
		os.Remove(photo.FilePath)
	}

	return nil
}
