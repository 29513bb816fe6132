package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	currentSchemaVersion = 2
)

// Store represents the application's persistent state
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at the given path
func Open(path string) (*Store, error) {
	// Open with pragmas for performance and reliability
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_timeout=5000&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with a single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}

	// Run migrations
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for custom queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	err = db.QueryRow("SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (s *Store) CheckIntegrity() error {
	var result string
	err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// migrate applies database migrations
func (s *Store) migrate() error {
	// Check current schema version
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	if version >= currentSchemaVersion {
		// Already at current version
		return nil
	}

	// Start transaction for migration
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Apply schema v1
	if version < 1 {
		if _, err := tx.Exec(schemaV1); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
		if err := s.setSchemaVersion(tx, 1); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	// Apply schema v2 - Wave tracking columns
	if version < 2 {
		if _, err := tx.Exec(schemaV2); err != nil {
			return fmt.Errorf("failed to apply schema v2: %w", err)
		}
		if err := s.setSchemaVersion(tx, 2); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	// Future migrations would go here:
	// if version < 3 { ... }

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (s *Store) getSchemaVersion() (int, error) {
	// Check if schema_version table exists
	var exists int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil {
		return 0, err
	}

	if exists == 0 {
		// No schema yet
		return 0, nil
	}

	// Get latest version
	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion records a schema version in a transaction
func (s *Store) setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// Transaction executes a function within a transaction
func (s *Store) Transaction(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ClearAllData removes every figure, photo and wishlist row and resets
// the autoincrement counters. Used by restore before reloading a backup.
func (s *Store) ClearAllData() error {
	return s.Transaction(func(tx *sql.Tx) error {
		// Photos first, they reference figures
		if _, err := tx.Exec("DELETE FROM photos"); err != nil {
			return fmt.Errorf("failed to clear photos: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM action_figures"); err != nil {
			return fmt.Errorf("failed to clear figures: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM wishlist"); err != nil {
			return fmt.Errorf("failed to clear wishlist: %w", err)
		}

		// Reset autoincrement counters so restored rows start at 1
		for _, table := range []string{"action_figures", "photos", "wishlist"} {
			if _, err := tx.Exec("DELETE FROM sqlite_sequence WHERE name = ?", table); err != nil {
				return fmt.Errorf("failed to reset sequence for %s: %w", table, err)
			}
		}

		return nil
	})
}

// Stats returns collection-wide statistics
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{}

	err := s.db.QueryRow("SELECT COUNT(*) FROM action_figures").Scan(&st.TotalFigures)
	if err != nil {
		return nil, fmt.Errorf("failed to count figures: %w", err)
	}

	err = s.db.QueryRow("SELECT COUNT(*) FROM photos").Scan(&st.TotalPhotos)
	if err != nil {
		return nil, fmt.Errorf("failed to count photos: %w", err)
	}

	err = s.db.QueryRow("SELECT COUNT(*) FROM wishlist").Scan(&st.WishlistItems)
	if err != nil {
		return nil, fmt.Errorf("failed to count wishlist items: %w", err)
	}

	err = s.db.QueryRow(`
		SELECT COALESCE(SUM(purchase_price), 0), COALESCE(SUM(current_value), 0)
		FROM action_figures
	`).Scan(&st.TotalSpent, &st.TotalValue)
	if err != nil {
		return nil, fmt.Errorf("failed to sum figure values: %w", err)
	}

	return st, nil
}

// Figure represents an action figure in the collection
type Figure struct {
	ID            int64
	Name          string
	Series        string
	Wave          string
	Manufacturer  string
	Year          int
	Scale         string
	Condition     string
	PurchasePrice float64
	CurrentValue  float64
	Location      string
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Derived by list and search queries, not stored columns
	PhotoCount   int
	PrimaryPhoto string
}

// Photo represents a photo attached to a figure
type Photo struct {
	ID         int64
	FigureID   int64
	FilePath   string
	Caption    string
	IsPrimary  bool
	UploadDate time.Time
}

// WishlistItem represents a figure wanted but not yet owned
type WishlistItem struct {
	ID           int64
	Name         string
	Series       string
	Wave         string
	Manufacturer string
	Year         int
	Scale        string
	TargetPrice  float64
	Priority     string
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Stats holds collection-wide statistics
type Stats struct {
	TotalFigures  int
	TotalPhotos   int
	WishlistItems int
	TotalSpent    float64
	TotalValue    float64
}
