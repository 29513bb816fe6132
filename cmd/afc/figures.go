package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a figure to the collection",
	Long: `Add a figure to the collection.

The name is the only required field; everything else can be filled in
with flags now or with 'afc edit' later.

Examples:
  afc add "Spider-Man" --series "Marvel Legends" --manufacturer Hasbro
  afc add "Optimus Prime" --year 2023 --price 54.99 --condition "Mint in Package"`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List figures in the collection",
	Long: `List the figures in the collection as a table.

Sortable by name, series, wave, manufacturer, year, condition or photo
count. --search filters on name, series, manufacturer and wave.`,
	RunE: runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one figure in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of an existing figure",
	Long: `Change fields of an existing figure.

Only the flags given are changed; everything else keeps its value.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a figure, its photo entries and its photo files",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)

	figureFlags(addCmd)

	listCmd.Flags().String("sort", "name", "sort column: name, series, wave, manufacturer, year, condition, photos")
	listCmd.Flags().Bool("desc", false, "sort in descending order")
	listCmd.Flags().StringP("search", "s", "", "only figures matching this term")

	figureFlags(editCmd)
	editCmd.Flags().String("name", "", "figure name")

	deleteCmd.Flags().Bool("yes", false, "delete without asking")
}

// figureFlags registers the descriptive field flags shared by add and edit
func figureFlags(cmd *cobra.Command) {
	cmd.Flags().String("series", "", "series or product line")
	cmd.Flags().String("wave", "", "wave within the series")
	cmd.Flags().String("manufacturer", "", "manufacturer")
	cmd.Flags().Int("year", 0, "release year")
	cmd.Flags().String("scale", "", `scale, e.g. "6 inch" or "1/12 Scale"`)
	cmd.Flags().String("condition", "", `condition, e.g. "Mint in Package" or "Loose"`)
	cmd.Flags().Float64("price", 0, "purchase price in dollars")
	cmd.Flags().Float64("value", 0, "current estimated value in dollars")
	cmd.Flags().String("location", "", "storage location")
	cmd.Flags().String("notes", "", "comma-separated tags")
}

// applyFigureFlags copies every flag the user set onto the figure. Flags
// left alone leave the figure's fields alone, which is what edit needs.
func applyFigureFlags(cmd *cobra.Command, f *store.Figure) {
	if cmd.Flags().Changed("name") {
		f.Name, _ = cmd.Flags().GetString("name")
	}
	if cmd.Flags().Changed("series") {
		f.Series, _ = cmd.Flags().GetString("series")
	}
	if cmd.Flags().Changed("wave") {
		f.Wave, _ = cmd.Flags().GetString("wave")
	}
	if cmd.Flags().Changed("manufacturer") {
		f.Manufacturer, _ = cmd.Flags().GetString("manufacturer")
	}
	if cmd.Flags().Changed("year") {
		f.Year, _ = cmd.Flags().GetInt("year")
	}
	if cmd.Flags().Changed("scale") {
		f.Scale, _ = cmd.Flags().GetString("scale")
	}
	if cmd.Flags().Changed("condition") {
		f.Condition, _ = cmd.Flags().GetString("condition")
	}
	if cmd.Flags().Changed("price") {
		f.PurchasePrice, _ = cmd.Flags().GetFloat64("price")
	}
	if cmd.Flags().Changed("value") {
		f.CurrentValue, _ = cmd.Flags().GetFloat64("value")
	}
	if cmd.Flags().Changed("location") {
		f.Location, _ = cmd.Flags().GetString("location")
	}
	if cmd.Flags().Changed("notes") {
		f.Notes, _ = cmd.Flags().GetString("notes")
	}
}

// validateFigure checks user-supplied fields before they reach the store.
// Name is mandatory, the year must fall in 1900-2030, money fields cannot
// be negative.
func validateFigure(f *store.Figure) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("name is required: %w", util.ErrValidation)
	}
	if f.Year != 0 && (f.Year < 1900 || f.Year > 2030) {
		return fmt.Errorf("year %d out of range (1900-2030): %w", f.Year, util.ErrValidation)
	}
	if f.PurchasePrice < 0 || f.CurrentValue < 0 {
		return fmt.Errorf("prices cannot be negative: %w", util.ErrValidation)
	}
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	util.SetVerbose(getBool(cmd, "verbose"))
	util.SetQuiet(getBool(cmd, "quiet"))

	f := &store.Figure{Name: strings.TrimSpace(args[0])}
	applyFigureFlags(cmd, f)

	if err := validateFigure(f); err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.AddFigure(f); err != nil {
		return err
	}

	util.SuccessLog("Added %q (ID %d)", f.Name, f.ID)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	sortColumn, _ := cmd.Flags().GetString("sort")
	desc, _ := cmd.Flags().GetBool("desc")
	search, _ := cmd.Flags().GetString("search")

	sortOrder := "ASC"
	if desc {
		sortOrder = "DESC"
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	var figures []*store.Figure
	if search != "" {
		figures, err = db.SearchFigures(search, sortColumn, sortOrder)
	} else {
		figures, err = db.ListFigures(sortColumn, sortOrder)
	}
	if err != nil {
		return err
	}

	if len(figures) == 0 {
		if search != "" {
			util.InfoLog("No figures match %q", search)
		} else {
			util.InfoLog("The collection is empty. Add a figure with 'afc add <name>'.")
		}
		return nil
	}

	renderFigureTable(figures)

	var spent float64
	for _, f := range figures {
		spent += f.PurchasePrice
	}
	fmt.Printf("\n%d figures", len(figures))
	if spent > 0 {
		fmt.Printf(", $%.2f spent", spent)
	}
	fmt.Println()

	return nil
}

// renderFigureTable prints the figures as a fixed-column table, flexing
// the name column to the terminal width
func renderFigureTable(figures []*store.Figure) {
	// Fixed columns: ID 4, Series 20, Manufacturer 14, Year 4, Price 9,
	// Photos 6, plus six separating spaces
	nameW := util.GetTerminalWidth() - 63
	if nameW < 16 {
		nameW = 16
	}
	if nameW > 40 {
		nameW = 40
	}

	fmt.Printf("%-4s %-*s %-20s %-14s %4s %9s %6s\n",
		"ID", nameW, "Name", "Series", "Manufacturer", "Year", "Price", "Photos")
	fmt.Println(strings.Repeat("-", nameW+63))

	for _, f := range figures {
		year := ""
		if f.Year > 0 {
			year = fmt.Sprintf("%d", f.Year)
		}
		price := "-"
		if f.PurchasePrice > 0 {
			price = fmt.Sprintf("$%.2f", f.PurchasePrice)
		}

		fmt.Printf("%-4d %-*s %-20s %-14s %4s %9s %6d\n",
			f.ID,
			nameW, truncate(f.Name, nameW),
			truncate(f.Series, 20),
			truncate(f.Manufacturer, 14),
			year, price, f.PhotoCount)
	}
}

// truncate shortens a string to max display runes, marking the cut
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := db.GetFigure(id)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("figure %d: %w", id, util.ErrNotFound)
	}

	fmt.Printf("\n=== %s ===\n", f.Name)
	fmt.Printf("ID:            %d\n", f.ID)
	if f.Series != "" {
		fmt.Printf("Series:        %s\n", f.Series)
	}
	if f.Wave != "" {
		fmt.Printf("Wave:          %s\n", f.Wave)
	}
	if f.Manufacturer != "" {
		fmt.Printf("Manufacturer:  %s\n", f.Manufacturer)
	}
	if f.Year > 0 {
		fmt.Printf("Year:          %d\n", f.Year)
	}
	if f.Scale != "" {
		fmt.Printf("Scale:         %s\n", f.Scale)
	}
	if f.Condition != "" {
		fmt.Printf("Condition:     %s\n", f.Condition)
	}
	if f.PurchasePrice > 0 {
		fmt.Printf("Purchased for: $%.2f\n", f.PurchasePrice)
	}
	if f.CurrentValue > 0 {
		fmt.Printf("Current value: $%.2f\n", f.CurrentValue)
	}
	if f.Location != "" {
		fmt.Printf("Location:      %s\n", f.Location)
	}
	if tags := tagsOf(f.Notes); len(tags) > 0 {
		fmt.Printf("Tags:          %s\n", strings.Join(tags, ", "))
	}
	if !f.CreatedAt.IsZero() {
		fmt.Printf("Added:         %s (%s)\n",
			f.CreatedAt.Format("2006-01-02"), humanize.Time(f.CreatedAt))
	}
	if !f.UpdatedAt.IsZero() && !f.UpdatedAt.Equal(f.CreatedAt) {
		fmt.Printf("Updated:       %s (%s)\n",
			f.UpdatedAt.Format("2006-01-02"), humanize.Time(f.UpdatedAt))
	}

	photos, err := db.GetFigurePhotos(id)
	if err != nil {
		return err
	}
	if len(photos) > 0 {
		fmt.Printf("\nPhotos (%d):\n", len(photos))
		for _, p := range photos {
			marker := " "
			if p.IsPrimary {
				marker = "✓"
			}
			missing := ""
			if !util.FileExists(p.FilePath) {
				missing = "  (file missing)"
			}
			fmt.Printf("  %s [%d] %s%s\n", marker, p.ID, p.FilePath, missing)
			if p.Caption != "" {
				fmt.Printf("        %q\n", p.Caption)
			}
		}
	}
	fmt.Println()

	return nil
}

// tagsOf splits the comma-delimited notes field for display. The store
// keeps the raw string; splitting is presentation only.
func tagsOf(notes string) []string {
	var tags []string
	for _, part := range strings.Split(notes, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func runEdit(cmd *cobra.Command, args []string) error {
	util.SetVerbose(getBool(cmd, "verbose"))
	util.SetQuiet(getBool(cmd, "quiet"))

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := db.GetFigure(id)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("figure %d: %w", id, util.ErrNotFound)
	}

	applyFigureFlags(cmd, f)
	if err := validateFigure(f); err != nil {
		return err
	}

	if err := db.UpdateFigure(f); err != nil {
		return err
	}

	util.SuccessLog("Updated figure %d (%s)", f.ID, f.Name)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	util.SetVerbose(getBool(cmd, "verbose"))
	util.SetQuiet(getBool(cmd, "quiet"))

	yes, _ := cmd.Flags().GetBool("yes")

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := db.GetFigure(id)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("figure %d: %w", id, util.ErrNotFound)
	}

	photos, err := db.GetFigurePhotos(id)
	if err != nil {
		return err
	}

	if !yes {
		question := fmt.Sprintf("Delete %q", f.Name)
		if len(photos) > 0 {
			question = fmt.Sprintf("Delete %q and its %d photos", f.Name, len(photos))
		}
		if !confirm(question + "?") {
			util.InfoLog("Nothing deleted")
			return nil
		}
	}

	if err := db.DeleteFigure(id); err != nil {
		return err
	}

	util.SuccessLog("Deleted figure %d (%s)", id, f.Name)
	return nil
}
