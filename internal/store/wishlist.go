package store

import (
	"database/sql"
	"fmt"

	"github.com/franz/figure-curator/internal/util"
)

// AddWishlistItem inserts a wishlist item and sets its ID
func (s *Store) AddWishlistItem(w *WishlistItem) error {
	if w.Priority == "" {
		w.Priority = "medium"
	}

	result, err := s.db.Exec(`
		INSERT INTO wishlist
			(name, series, wave, manufacturer, year, scale, target_price, priority, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.Name, w.Series, w.Wave, w.Manufacturer, w.Year, w.Scale,
		w.TargetPrice, w.Priority, w.Notes)

	if err != nil {
		return fmt.Errorf("failed to insert wishlist item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get wishlist item ID: %w", err)
	}
	w.ID = id

	return nil
}

// GetWishlistItem retrieves a wishlist item by ID, or nil if it does not exist
func (s *Store) GetWishlistItem(id int64) (*WishlistItem, error) {
	w := &WishlistItem{}
	err := s.db.QueryRow(`
		SELECT id, name, COALESCE(series, ''), COALESCE(wave, ''),
		       COALESCE(manufacturer, ''), COALESCE(year, 0), COALESCE(scale, ''),
		       COALESCE(target_price, 0), COALESCE(priority, 'medium'),
		       COALESCE(notes, ''), created_at, updated_at
		FROM wishlist WHERE id = ?
	`, id).Scan(
		&w.ID, &w.Name, &w.Series, &w.Wave,
		&w.Manufacturer, &w.Year, &w.Scale,
		&w.TargetPrice, &w.Priority,
		&w.Notes, &w.CreatedAt, &w.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wishlist item: %w", err)
	}

	return w, nil
}

// GetAllWishlistItems retrieves every wishlist item, highest priority first,
// newest first within each priority
func (s *Store) GetAllWishlistItems() ([]*WishlistItem, error) {
	rows, err := s.db.Query(`
		SELECT id, name, COALESCE(series, ''), COALESCE(wave, ''),
		       COALESCE(manufacturer, ''), COALESCE(year, 0), COALESCE(scale, ''),
		       COALESCE(target_price, 0), COALESCE(priority, 'medium'),
		       COALESCE(notes, ''), created_at, updated_at
		FROM wishlist
		ORDER BY CASE priority
			WHEN 'high' THEN 0
			WHEN 'medium' THEN 1
			ELSE 2
		END, created_at DESC
	`)

	if err != nil {
		return nil, fmt.Errorf("failed to query wishlist: %w", err)
	}
	defer rows.Close()

	var items []*WishlistItem
	for rows.Next() {
		w := &WishlistItem{}
		err := rows.Scan(
			&w.ID, &w.Name, &w.Series, &w.Wave,
			&w.Manufacturer, &w.Year, &w.Scale,
			&w.TargetPrice, &w.Priority,
			&w.Notes, &w.CreatedAt, &w.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		items = append(items, w)
	}

	return items, rows.Err()
}

// UpdateWishlistItem updates an existing wishlist item by ID
func (s *Store) UpdateWishlistItem(w *WishlistItem) error {
	result, err := s.db.Exec(`
		UPDATE wishlist SET
			name = ?, series = ?, wave = ?, manufacturer = ?, year = ?,
			scale = ?, target_price = ?, priority = ?, notes = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, w.Name, w.Series, w.Wave, w.Manufacturer, w.Year,
		w.Scale, w.TargetPrice, w.Priority, w.Notes, w.ID)

	if err != nil {
		return fmt.Errorf("failed to update wishlist item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("wishlist item %d: %w", w.ID, util.ErrNotFound)
	}

	return nil
}

// DeleteWishlistItem removes a wishlist item
func (s *Store) DeleteWishlistItem(id int64) error {
	result, err := s.db.Exec("DELETE FROM wishlist WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete wishlist item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("wishlist item %d: %w", id, util.ErrNotFound)
	}

	return nil
}

// PromoteWishlistItem adds the given figure to the collection and removes
// the wishlist item it came from. The figure's ID is set on success.
func (s *Store) PromoteWishlistItem(itemID int64, f *Figure) error {
	if err := s.AddFigure(f); err != nil {
		return fmt.Errorf("failed to promote wishlist item %d: %w", itemID, err)
	}

	if err := s.DeleteWishlistItem(itemID); err != nil {
		return fmt.Errorf("figure %d added but wishlist item not removed: %w", f.ID, err)
	}

	return nil
}
