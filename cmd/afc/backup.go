package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/figure-curator/internal/archive"
	"github.com/franz/figure-curator/internal/backup"
	"github.com/franz/figure-curator/internal/report"
	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create and inspect backup archives",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Export the whole collection to a backup archive",
	Long: `Export the whole collection to a backup archive.

The archive is a single zip holding the figures, photos and wishlist
as CSV files, the photo files as a compressed bundle, and a README
describing the contents. It lands in the backups directory under a
timestamped name and can be restored with 'afc restore' or merged
into another collection with 'afc merge apply'.`,
	RunE: runBackupCreate,
}

var backupInfoCmd = &cobra.Command{
	Use:   "info <archive>",
	Short: "Show what a backup archive contains",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupInfo,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupInfoCmd)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	util.SetVerbose(getBool(cmd, "verbose"))
	util.SetQuiet(getBool(cmd, "quiet"))

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := openLogger()
	defer logger.Close()

	pipeline := backup.New(&backup.Config{
		Store:      db,
		PhotosDir:  photosDir(),
		BackupsDir: backupsDir(),
		Logger:     logger,
	})

	startTime := time.Now()
	result, err := pipeline.Create(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	util.InfoLog("")
	util.SuccessLog("=== Backup Summary ===")
	util.InfoLog("Archive: %s", result.ArchivePath)
	util.InfoLog("Figures: %d", result.Figures)
	util.InfoLog("Photos: %d", result.Photos)
	util.InfoLog("Wishlist items: %d", result.WishlistItems)
	util.InfoLog("Size: %s", util.FormatBytes(result.Bytes))
	util.InfoLog("Total time: %v", time.Since(startTime).Round(time.Millisecond))

	writeSummaryReport(db, logger, func(summary *report.SummaryReport) {
		summary.ArchivePath = result.ArchivePath
		summary.Duration = time.Since(startTime)
	})

	return nil
}

func runBackupInfo(cmd *cobra.Command, args []string) error {
	archivePath := args[0]

	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", archivePath, err)
	}

	a, err := archive.Open(archivePath)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Archive: %s (%s)\n", archivePath, util.FormatBytes(info.Size()))

	manifest, err := a.Manifest()
	if err != nil {
		return err
	}
	if manifest == nil {
		util.WarnLog("Archive has no manifest")
	} else {
		if manifest.BackupID != "" {
			fmt.Printf("Backup ID: %s\n", manifest.BackupID)
		}
		if !manifest.CreatedAt.IsZero() {
			fmt.Printf("Created: %s (%s)\n",
				manifest.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(manifest.CreatedAt))
		}
	}

	ds, err := a.ReadDataset()
	if err != nil {
		return err
	}

	fmt.Printf("\nContents:\n")
	fmt.Printf("  Figures:        %d\n", len(ds.Figures))
	fmt.Printf("  Photo entries:  %d\n", len(ds.Photos))
	fmt.Printf("  Wishlist items: %d\n", len(ds.Wishlist))
	if a.HasBundle() {
		fmt.Printf("  Photo bundle:   present\n")
	} else {
		fmt.Printf("  Photo bundle:   none\n")
	}

	return nil
}

// writeSummaryReport renders the run's Markdown summary under the
// artifacts directory. Reporting is best effort and never fails the
// command.
func writeSummaryReport(db *store.Store, logger *report.EventLogger, fill func(*report.SummaryReport)) {
	summary, err := report.GenerateSummaryReport(db, logger.Path())
	if err != nil {
		util.WarnLog("Failed to generate summary report: %v", err)
		return
	}
	summary.DatabasePath = databasePath()
	if fill != nil {
		fill(summary)
	}

	timestamp := time.Now().Format("20060102-150405")
	reportPath := filepath.Join(artifactsDir(), "reports", timestamp, "summary.md")

	if err := report.WriteMarkdownReport(summary, reportPath); err != nil {
		util.WarnLog("Failed to write summary report: %v", err)
		return
	}
	util.SuccessLog("Summary report saved to: %s", reportPath)
}
