package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/figure-curator/internal/store"
)

// SummaryReport represents a complete summary report of a merge or
// backup/restore run
type SummaryReport struct {
	GeneratedAt time.Time
	Duration    time.Duration

	// Collection statistics (after the run)
	TotalFigures  int
	TotalPhotos   int
	WishlistItems int
	TotalSpent    float64
	TotalValue    float64

	// Analysis statistics
	SourceFigures   int
	NewFigures      int
	Conflicts       int
	PhotoCollisions int

	// Apply statistics
	AddedFigures     int
	UpdatedFigures   int
	AddedPhotos      int
	SkippedConflicts int

	// Metadata
	ArchivePath  string
	DatabasePath string
	EventLogPath string
}

// GenerateSummaryReport creates a summary report from the store; analysis
// and apply counters are filled in by the caller from its own run
func GenerateSummaryReport(db *store.Store, eventLogPath string) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		EventLogPath: eventLogPath,
	}

	stats, err := db.Stats()
	if err != nil {
		return nil, fmt.Errorf("failed to gather collection stats: %w", err)
	}

	report.TotalFigures = stats.TotalFigures
	report.TotalPhotos = stats.TotalPhotos
	report.WishlistItems = stats.WishlistItems
	report.TotalSpent = stats.TotalSpent
	report.TotalValue = stats.TotalValue

	return report, nil
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	// Create output directory
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Generate markdown content
	var md strings.Builder

	// Header
	md.WriteString("# Action Figure Curator - Summary Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.ArchivePath != "" {
		md.WriteString(fmt.Sprintf("**Archive:** `%s`\n\n", report.ArchivePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Collection overview
	md.WriteString("## 📊 Collection\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Figures | %d |\n", report.TotalFigures))
	md.WriteString(fmt.Sprintf("| Photos | %d |\n", report.TotalPhotos))
	md.WriteString(fmt.Sprintf("| Wishlist Items | %d |\n", report.WishlistItems))
	if report.TotalSpent > 0 {
		md.WriteString(fmt.Sprintf("| Total Spent | $%.2f |\n", report.TotalSpent))
	}
	if report.TotalValue > 0 {
		md.WriteString(fmt.Sprintf("| Estimated Value | $%.2f |\n", report.TotalValue))
	}
	md.WriteString("\n")

	// Analysis
	if report.SourceFigures > 0 {
		md.WriteString("## 🔍 Merge Analysis\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Source Figures | %d |\n", report.SourceFigures))
		md.WriteString(fmt.Sprintf("| New Figures | %d |\n", report.NewFigures))
		md.WriteString(fmt.Sprintf("| Conflicts | %d |\n", report.Conflicts))
		md.WriteString(fmt.Sprintf("| Photo Collisions | %d |\n", report.PhotoCollisions))
		md.WriteString("\n")
	}

	// Apply results
	if report.AddedFigures > 0 || report.UpdatedFigures > 0 || report.AddedPhotos > 0 || report.SkippedConflicts > 0 {
		md.WriteString("## ⚡ Merge Results\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Figures Added | %d |\n", report.AddedFigures))
		md.WriteString(fmt.Sprintf("| Figures Updated | %d |\n", report.UpdatedFigures))
		md.WriteString(fmt.Sprintf("| Photos Added | %d |\n", report.AddedPhotos))
		md.WriteString(fmt.Sprintf("| Conflicts Skipped | %d |\n", report.SkippedConflicts))
		if report.Duration > 0 {
			md.WriteString(fmt.Sprintf("| Duration | %s |\n", report.Duration.Round(time.Second)))
		}
		md.WriteString("\n")
	}

	// Footer
	md.WriteString("---\n\n")
	md.WriteString("*Generated by [AFC](https://github.com/franz/figure-curator) - Action Figure Curator*\n")

	// Write to file
	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
