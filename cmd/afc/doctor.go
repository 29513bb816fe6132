package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/figure-curator/internal/report"
	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
	"github.com/franz/figure-curator/internal/verify"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and data",
	Long: `Run diagnostic checks to ensure afc can operate correctly.

This command checks:
- SQLite availability and database integrity
- Photos directory existence
- Photo rows whose files are missing (dangling rows)
- Photo files no row references (orphans)
- Backups directory writability

Nothing is modified; findings are reported for you to act on.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	util.SetVerbose(getBool(cmd, "verbose"))
	util.SetQuiet(getBool(cmd, "quiet"))

	util.InfoLog("=== AFC Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	// 1. Check SQLite
	results = append(results, checkSQLite())

	// 2. Check the database file
	results = append(results, checkDatabase(databasePath()))

	// 3. Check the photos directory and its consistency with the store
	results = append(results, checkPhotos(ctx)...)

	// 4. Check the backups directory
	results = append(results, checkBackupsDirectory(backupsDir()))

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running afc.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! The collection is healthy.")
	}

	return nil
}

// checkSQLite verifies the built-in SQLite driver works
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility and integrity
func checkDatabase(dbPath string) checkResult {
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	stats, err := db.Stats()
	if err != nil {
		return checkResult{
			name:    "Database",
			warning: true,
			message: fmt.Sprintf("opened but stats failed: %v", err),
		}
	}

	return checkResult{
		name: "Database",
		message: fmt.Sprintf("%s (%s, %d figures, %d photos)",
			dbPath, util.FormatBytes(info.Size()), stats.TotalFigures, stats.TotalPhotos),
	}
}

// checkPhotos cross-checks photo rows against the photos directory
func checkPhotos(ctx context.Context) []checkResult {
	db, err := openStore()
	if err != nil {
		return []checkResult{{
			name:    "Photo consistency",
			error:   true,
			message: err.Error(),
		}}
	}
	defer db.Close()

	checker := verify.New(&verify.Config{
		Store:     db,
		PhotosDir: photosDir(),
		Logger:    report.NullLogger(),
	})

	result, err := checker.Check(ctx)
	if err != nil {
		return []checkResult{{
			name:    "Photo consistency",
			error:   true,
			message: err.Error(),
		}}
	}

	results := []checkResult{}

	if result.MissingDir {
		results = append(results, checkResult{
			name:    "Photos directory",
			message: fmt.Sprintf("%s (will be created when photos are added)", photosDir()),
		})
	} else {
		results = append(results, checkResult{
			name:    "Photos directory",
			message: fmt.Sprintf("%s (%d files)", photosDir(), result.FilesChecked),
		})
	}

	dangling := checkResult{
		name:    "Dangling photo rows",
		message: fmt.Sprintf("%d rows checked, none missing a file", result.RowsChecked),
	}
	if len(result.DanglingRows) > 0 {
		dangling.warning = true
		dangling.message = fmt.Sprintf("%d rows reference missing files (delete them with 'afc photos delete')",
			len(result.DanglingRows))
	}
	results = append(results, dangling)

	orphans := checkResult{
		name:    "Orphaned photo files",
		message: "none",
	}
	if len(result.OrphanFiles) > 0 {
		orphans.warning = true
		orphans.message = fmt.Sprintf("%d files have no photo row", len(result.OrphanFiles))
	}
	results = append(results, orphans)

	return results
}

// checkBackupsDirectory verifies the backups directory is writable
func checkBackupsDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Backups directory",
				message: fmt.Sprintf("%s (will be created on first backup)", path),
			}
		}
		return checkResult{
			name:    "Backups directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Backups directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	testFile := filepath.Join(path, ".afc_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    "Backups directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    "Backups directory",
		message: fmt.Sprintf("%s (writable)", path),
	}
}
