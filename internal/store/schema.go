package store

// Schema v1 - Initial database schema
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Action figures in the collection
CREATE TABLE IF NOT EXISTS action_figures (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  series TEXT,
  manufacturer TEXT,
  year INTEGER,
  scale TEXT,
  condition TEXT,
  purchase_price REAL,
  current_value REAL,
  location TEXT,
  notes TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_figures_name ON action_figures(name);
CREATE INDEX IF NOT EXISTS idx_figures_series ON action_figures(series);

-- Photos attached to figures (one figure may have many)
CREATE TABLE IF NOT EXISTS photos (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  figure_id INTEGER NOT NULL REFERENCES action_figures(id) ON DELETE CASCADE,
  file_path TEXT NOT NULL,
  caption TEXT,
  is_primary INTEGER DEFAULT 0,
  upload_date DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_photos_figure_id ON photos(figure_id);

-- Figures wanted but not yet owned
CREATE TABLE IF NOT EXISTS wishlist (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  series TEXT,
  manufacturer TEXT,
  year INTEGER,
  scale TEXT,
  target_price REAL,
  priority TEXT DEFAULT 'medium',
  notes TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Schema v2 - Wave tracking
// Databases created before wave support was added get the column here.
const schemaV2 = `
ALTER TABLE action_figures ADD COLUMN wave TEXT;
ALTER TABLE wishlist ADD COLUMN wave TEXT;
`
