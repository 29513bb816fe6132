package store

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/franz/figure-curator/internal/util"
)

// AddPhoto inserts a photo row and sets its ID. When the photo is marked
// primary, any existing primary photo of the same figure is demoted first.
func (s *Store) AddPhoto(p *Photo) error {
	return s.Transaction(func(tx *sql.Tx) error {
		if p.IsPrimary {
			if _, err := tx.Exec("UPDATE photos SET is_primary = 0 WHERE figure_id = ?", p.FigureID); err != nil {
				return fmt.Errorf("failed to demote primary photos: %w", err)
			}
		}

		result, err := tx.Exec(`
			INSERT INTO photos (figure_id, file_path, caption, is_primary)
			VALUES (?, ?, ?, ?)
		`, p.FigureID, p.FilePath, p.Caption, p.IsPrimary)
		if err != nil {
			return fmt.Errorf("failed to insert photo: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get photo ID: %w", err)
		}
		p.ID = id

		return nil
	})
}

// GetPhoto retrieves a photo by ID, or nil if it does not exist
func (s *Store) GetPhoto(id int64) (*Photo, error) {
	p := &Photo{}
	err := s.db.QueryRow(`
		SELECT id, figure_id, file_path, COALESCE(caption, ''), is_primary, upload_date
		FROM photos WHERE id = ?
	`, id).Scan(
		&p.ID, &p.FigureID, &p.FilePath, &p.Caption, &p.IsPrimary, &p.UploadDate,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}

	return p, nil
}

// GetFigurePhotos retrieves the photos of a figure, primary first,
// newest upload first within each group
func (s *Store) GetFigurePhotos(figureID int64) ([]*Photo, error) {
	rows, err := s.db.Query(`
		SELECT id, figure_id, file_path, COALESCE(caption, ''), is_primary, upload_date
		FROM photos
		WHERE figure_id = ?
		ORDER BY is_primary DESC, upload_date DESC
	`, figureID)

	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		p := &Photo{}
		err := rows.Scan(&p.ID, &p.FigureID, &p.FilePath, &p.Caption, &p.IsPrimary, &p.UploadDate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, p)
	}

	return photos, rows.Err()
}

// GetAllPhotos retrieves every photo grouped by figure
func (s *Store) GetAllPhotos() ([]*Photo, error) {
	rows, err := s.db.Query(`
		SELECT id, figure_id, file_path, COALESCE(caption, ''), is_primary, upload_date
		FROM photos
		ORDER BY figure_id, upload_date DESC
	`)

	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		p := &Photo{}
		err := rows.Scan(&p.ID, &p.FigureID, &p.FilePath, &p.Caption, &p.IsPrimary, &p.UploadDate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, p)
	}

	return photos, rows.Err()
}

// DeletePhoto removes a photo row and its file. A file that cannot be
// removed is left behind.
func (s *Store) DeletePhoto(id int64) error {
	photo, err := s.GetPhoto(id)
	if err != nil {
		return err
	}
	if photo == nil {
		return fmt.Errorf("photo %d: %w", id, util.ErrNotFound)
	}

	if _, err := s.db.Exec("DELETE FROM photos WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}

	os.Remove(photo.FilePath)

	return nil
}

// SetPrimaryPhoto makes the given photo the figure's primary photo,
// demoting any other
func (s *Store) SetPrimaryPhoto(figureID, photoID int64) error {
	return s.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("UPDATE photos SET is_primary = 0 WHERE figure_id = ?", figureID); err != nil {
			return fmt.Errorf("failed to demote primary photos: %w", err)
		}

		result, err := tx.Exec(`
			UPDATE photos SET is_primary = 1 WHERE id = ? AND figure_id = ?
		`, photoID, figureID)
		if err != nil {
			return fmt.Errorf("failed to set primary photo: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("photo %d for figure %d: %w", photoID, figureID, util.ErrNotFound)
		}

		return nil
	})
}
