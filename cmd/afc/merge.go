package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/figure-curator/internal/archive"
	"github.com/franz/figure-curator/internal/merge"
	"github.com/franz/figure-curator/internal/report"
	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Combine another collection's export with this one",
}

var mergeAnalyzeCmd = &cobra.Command{
	Use:   "analyze <source>",
	Short: "Preview what merging a source would do",
	Long: `Preview what merging a source would do, without changing anything.

The source is a backup archive (.zip) or a bare figures export (.csv).
Each source figure is matched against the collection by its normalized
name, series and manufacturer; unmatched figures would be added,
matched ones are conflicts. Photo file names already present in the
collection are reported as collisions.

Run 'afc merge apply' with the same source to perform the merge.`,
	Args: cobra.ExactArgs(1),
	RunE: runMergeAnalyze,
}

var mergeApplyCmd = &cobra.Command{
	Use:   "apply <source>",
	Short: "Merge a source into the collection",
	Long: `Merge a source into the collection.

New figures are added with fresh IDs. Conflicting figures are handled
per --conflicts:
  skip          keep the existing figure untouched (default)
  update        overwrite its fields with the source figure's
  merge-photos  keep its fields, attach the source figure's photos

Photos whose file name is already taken are renamed (name_1.jpg,
name_2.jpg, ...) unless --no-rename drops them instead.

Example:
  afc merge apply backups/backup_20250812_090000.zip --conflicts update`,
	Args: cobra.ExactArgs(1),
	RunE: runMergeApply,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.AddCommand(mergeAnalyzeCmd)
	mergeCmd.AddCommand(mergeApplyCmd)

	mergeAnalyzeCmd.Flags().Bool("diffs", false, "show field-by-field diffs for each conflict")

	mergeApplyCmd.Flags().String("conflicts", "skip", "conflict resolution: skip, update or merge-photos")
	mergeApplyCmd.Flags().Bool("no-rename", false, "drop colliding photos instead of renaming them")
	mergeApplyCmd.Flags().Bool("yes", false, "merge without asking")
}

// loadSource reads a merge source: a backup archive, or a bare figures
// CSV which merges with zero photos. The cleanup function removes the
// temporary directory the archive's photo bundle was extracted into.
func loadSource(sourcePath string) (*archive.Dataset, func(), error) {
	noop := func() {}

	if strings.EqualFold(filepath.Ext(sourcePath), ".csv") {
		file, err := os.Open(sourcePath)
		if err != nil {
			return nil, noop, fmt.Errorf("cannot open %s: %w", sourcePath, err)
		}
		defer file.Close()

		figures, err := archive.ReadFiguresCSV(file)
		if err != nil {
			return nil, noop, err
		}
		return &archive.Dataset{Figures: figures}, noop, nil
	}

	a, err := archive.Open(sourcePath)
	if err != nil {
		return nil, noop, err
	}
	defer a.Close()

	ds, err := a.ReadDataset()
	if err != nil {
		return nil, noop, err
	}

	if a.HasBundle() {
		tempDir, err := os.MkdirTemp("", "afc-merge-")
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create staging directory: %w", err)
		}
		if _, err := a.ExtractBundle(tempDir); err != nil {
			os.RemoveAll(tempDir)
			return nil, noop, err
		}
		ds.PhotosDir = tempDir
		return ds, func() { os.RemoveAll(tempDir) }, nil
	}

	return ds, noop, nil
}

func runMergeAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	util.SetVerbose(getBool(cmd, "verbose"))
	util.SetQuiet(getBool(cmd, "quiet"))

	showDiffs, _ := cmd.Flags().GetBool("diffs")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := openLogger()
	defer logger.Close()

	source, cleanup, err := loadSource(args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	planner := merge.NewPlanner(&merge.PlannerConfig{Store: db, Logger: logger})
	plan, err := planner.Analyze(ctx, source)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	logger.LogAnalyze(args[0], plan.Summary.SourceFigures, plan.Summary.NewFigures,
		plan.Summary.Conflicts, plan.Summary.Collisions)

	printPlanSummary(plan)

	if len(plan.Conflicts) > 0 {
		fmt.Printf("\nConflicts:\n")
		for _, c := range plan.Conflicts {
			fmt.Printf("  %q (%s) matches existing figure %d\n",
				c.Source.Name, c.Source.Series, c.Target.ID)
			if showDiffs {
				diff, err := conflictDiff(c)
				if err != nil {
					util.WarnLog("Could not diff conflict: %v", err)
				} else if diff == "" {
					fmt.Printf("    (fields are identical)\n")
				} else {
					fmt.Print(indent(diff, "    "))
				}
			}
		}
	}

	if len(plan.PhotoCollisions) > 0 {
		fmt.Printf("\nPhoto collisions (will be renamed on apply):\n")
		for _, col := range plan.PhotoCollisions {
			fmt.Printf("  %s\n", col.Filename)
		}
	}

	fmt.Printf("\nNothing was changed. Run 'afc merge apply %s' to merge.\n", args[0])
	return nil
}

func printPlanSummary(plan *merge.Plan) {
	fmt.Printf("\nMerge analysis:\n")
	fmt.Printf("  Source figures:   %d\n", plan.Summary.SourceFigures)
	fmt.Printf("  New figures:      %d\n", plan.Summary.NewFigures)
	fmt.Printf("  Conflicts:        %d\n", plan.Summary.Conflicts)
	fmt.Printf("  Source photos:    %d\n", plan.Summary.SourcePhotos)
	fmt.Printf("  Photo collisions: %d\n", plan.Summary.Collisions)
}

// conflictDiff renders a unified diff between the existing figure's
// fields and the incoming ones
func conflictDiff(c *merge.Conflict) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(figureFields(c.Target)),
		B:        difflib.SplitLines(figureFields(c.Source)),
		FromFile: fmt.Sprintf("existing (ID %d)", c.Target.ID),
		ToFile:   "incoming",
		Context:  1,
	})
}

// figureFields renders the descriptive fields one per line so the diff
// pinpoints exactly what would change on --conflicts update
func figureFields(f *store.Figure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", f.Name)
	fmt.Fprintf(&b, "series: %s\n", f.Series)
	fmt.Fprintf(&b, "wave: %s\n", f.Wave)
	fmt.Fprintf(&b, "manufacturer: %s\n", f.Manufacturer)
	fmt.Fprintf(&b, "year: %d\n", f.Year)
	fmt.Fprintf(&b, "scale: %s\n", f.Scale)
	fmt.Fprintf(&b, "condition: %s\n", f.Condition)
	fmt.Fprintf(&b, "purchase_price: %.2f\n", f.PurchasePrice)
	fmt.Fprintf(&b, "current_value: %.2f\n", f.CurrentValue)
	fmt.Fprintf(&b, "location: %s\n", f.Location)
	fmt.Fprintf(&b, "notes: %s\n", f.Notes)
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n") + "\n"
}

func runMergeApply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	util.SetVerbose(getBool(cmd, "verbose"))
	util.SetQuiet(getBool(cmd, "quiet"))

	conflictMode, _ := cmd.Flags().GetString("conflicts")
	noRename, _ := cmd.Flags().GetBool("no-rename")
	yes, _ := cmd.Flags().GetBool("yes")

	var resolution merge.Resolution
	switch conflictMode {
	case "skip":
		resolution = merge.ResolutionSkip
	case "update":
		resolution = merge.ResolutionUpdate
	case "merge-photos":
		resolution = merge.ResolutionMergePhotos
	default:
		return fmt.Errorf("unknown conflict mode %q (want skip, update or merge-photos): %w",
			conflictMode, util.ErrValidation)
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := openLogger()
	defer logger.Close()

	source, cleanup, err := loadSource(args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	planner := merge.NewPlanner(&merge.PlannerConfig{Store: db, Logger: logger})
	plan, err := planner.Analyze(ctx, source)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	logger.LogAnalyze(args[0], plan.Summary.SourceFigures, plan.Summary.NewFigures,
		plan.Summary.Conflicts, plan.Summary.Collisions)

	plan.SetConflictResolutions(resolution)
	if noRename {
		plan.SetCollisionActions(merge.CollisionSkip)
	}

	printPlanSummary(plan)
	if len(plan.Conflicts) > 0 {
		fmt.Printf("  Conflicts will be resolved as: %s\n", resolution)
	}

	if !yes && !confirm("Proceed with the merge?") {
		util.InfoLog("Merge cancelled, nothing changed")
		return nil
	}

	executor := merge.NewExecutor(&merge.ExecutorConfig{
		Store:     db,
		PhotosDir: photosDir(),
		Logger:    logger,
	})

	startTime := time.Now()
	result, err := drainMerge(executor.Run(ctx, source, plan))
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	util.InfoLog("")
	util.SuccessLog("=== Merge Summary ===")
	util.InfoLog("Figures added: %d", result.AddedFigures)
	util.InfoLog("Figures updated: %d", result.UpdatedFigures)
	util.InfoLog("Photos added: %d", result.AddedPhotos)
	util.InfoLog("Conflicts skipped: %d", result.SkippedConflicts)
	util.InfoLog("Total time: %v", time.Since(startTime).Round(time.Millisecond))

	writeSummaryReport(db, logger, func(summary *report.SummaryReport) {
		summary.ArchivePath = args[0]
		summary.Duration = time.Since(startTime)
		summary.SourceFigures = plan.Summary.SourceFigures
		summary.NewFigures = plan.Summary.NewFigures
		summary.Conflicts = plan.Summary.Conflicts
		summary.PhotoCollisions = plan.Summary.Collisions
		summary.AddedFigures = result.AddedFigures
		summary.UpdatedFigures = result.UpdatedFigures
		summary.AddedPhotos = result.AddedPhotos
		summary.SkippedConflicts = result.SkippedConflicts
	})

	return nil
}

// drainMerge consumes the merge worker's update stream, rendering a
// progress bar on a terminal and log lines otherwise, and returns the
// terminal result or error
func drainMerge(updates <-chan merge.Update) (*merge.Result, error) {
	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription("Merging"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	var result *merge.Result
	var err error
	for update := range updates {
		switch {
		case update.Progress != nil:
			if bar != nil {
				bar.Describe(update.Progress.Message)
				bar.Set(update.Progress.Percentage)
			} else {
				util.InfoLog("[%3d%%] %s", update.Progress.Percentage, update.Progress.Message)
			}
		case update.Result != nil:
			result = update.Result
		case update.Err != nil:
			err = update.Err
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("merge worker ended without a result")
	}
	return result, nil
}
