package main

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/figure-curator/internal/backup"
	"github.com/franz/figure-curator/internal/report"
	"github.com/franz/figure-curator/internal/util"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Replace the collection with a backup archive's contents",
	Long: `Replace the collection with a backup archive's contents.

This is destructive: every figure, photo and wishlist item is deleted
before the archive is imported, and the photos directory is rebuilt
from the archive's photo bundle. The archive is fully validated first,
so a corrupt or unsafe archive aborts with nothing lost — but once the
clear has started, interrupting the restore loses the old data.

To combine two collections instead of replacing one, use
'afc merge apply'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().Bool("yes", false, "restore without asking")
	restoreCmd.Flags().Bool("backup-first", false, "export the current collection before restoring")
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	util.SetVerbose(getBool(cmd, "verbose"))
	util.SetQuiet(getBool(cmd, "quiet"))

	archivePath := args[0]
	yes, _ := cmd.Flags().GetBool("yes")
	backupFirst, _ := cmd.Flags().GetBool("backup-first")

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

	stats, err := db.Stats()
	if err != nil {
		return err
	}

	// The user must know what is at stake before anything is destroyed
	if !yes {
		util.WarnLog("Restoring will DELETE the current collection: %d figures, %d photos, %d wishlist items.",
			stats.TotalFigures, stats.TotalPhotos, stats.WishlistItems)
		util.WarnLog("Interrupting a restore in progress can lose data.")
		if !confirm(fmt.Sprintf("Replace everything with %s?", archivePath)) {
			util.InfoLog("Restore cancelled, nothing changed")
			return nil
		}
	}

	if backupFirst {
		util.InfoLog("Backing up the current collection first...")
		safety, err := pipeline.Create(ctx)
		if err != nil {
			return fmt.Errorf("pre-restore backup failed, nothing restored: %w", err)
		}
		util.InfoLog("Current collection saved to %s", safety.ArchivePath)
	}

	startTime := time.Now()
	result, err := pipeline.Restore(ctx, archivePath)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	util.InfoLog("")
	util.SuccessLog("=== Restore Summary ===")
	util.InfoLog("Figures: %d", result.Figures)
	util.InfoLog("Photos: %d entries, %d files", result.Photos, result.PhotoFiles)
	if result.SkippedPhotos > 0 {
		util.WarnLog("Skipped photos: %d (owner missing from archive)", result.SkippedPhotos)
	}
	util.InfoLog("Wishlist items: %d", result.WishlistItems)
	util.InfoLog("Total time: %v", time.Since(startTime).Round(time.Millisecond))

	writeSummaryReport(db, logger, func(summary *report.SummaryReport) {
		summary.ArchivePath = archivePath
		summary.Duration = time.Since(startTime)
	})

	return nil
}
