package main

import (
	"fmt"
	"strings"

	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
	"github.com/spf13/cobra"
)

var wishlistCmd = &cobra.Command{
	Use:   "wishlist",
	Short: "Manage the wishlist of figures you want",
}

var wishlistAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a figure to the wishlist",
	Long: `Add a figure to the wishlist.

Examples:
  afc wishlist add "Green Goblin" --series "Marvel Legends" --priority high
  afc wishlist add "Soundwave" --target-price 39.99`,
	Args: cobra.ExactArgs(1),
	RunE: runWishlistAdd,
}

var wishlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wishlist items, highest priority first",
	RunE:  runWishlistList,
}

var wishlistEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of a wishlist item",
	Args:  cobra.ExactArgs(1),
	RunE:  runWishlistEdit,
}

var wishlistDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove an item from the wishlist",
	Args:  cobra.ExactArgs(1),
	RunE:  runWishlistDelete,
}

var wishlistPromoteCmd = &cobra.Command{
	Use:   "promote <id>",
	Short: "Move a wishlist item into the collection",
	Long: `Move a wishlist item into the collection.

The item's descriptive fields carry over; purchase details can be set
with flags. The figure is added first and the wishlist item removed
after, so a failure can leave both present but never lose the item.

Example:
  afc wishlist promote 2 --price 44.99 --condition "Mint in Package"`,
	Args: cobra.ExactArgs(1),
	RunE: runWishlistPromote,
}

func init() {
	rootCmd.AddCommand(wishlistCmd)
	wishlistCmd.AddCommand(wishlistAddCmd)
	wishlistCmd.AddCommand(wishlistListCmd)
	wishlistCmd.AddCommand(wishlistEditCmd)
	wishlistCmd.AddCommand(wishlistDeleteCmd)
	wishlistCmd.AddCommand(wishlistPromoteCmd)

	wishlistFlags(wishlistAddCmd)

	wishlistFlags(wishlistEditCmd)
	wishlistEditCmd.Flags().String("name", "", "figure name")

	wishlistDeleteCmd.Flags().Bool("yes", false, "delete without asking")

	wishlistPromoteCmd.Flags().Float64("price", 0, "purchase price in dollars")
	wishlistPromoteCmd.Flags().String("condition", "", "condition of the acquired figure")
	wishlistPromoteCmd.Flags().String("location", "", "storage location")
}

// wishlistFlags registers the field flags shared by add and edit
func wishlistFlags(cmd *cobra.Command) {
	cmd.Flags().String("series", "", "series or product line")
	cmd.Flags().String("wave", "", "wave within the series")
	cmd.Flags().String("manufacturer", "", "manufacturer")
	cmd.Flags().Int("year", 0, "release year")
	cmd.Flags().String("scale", "", `scale, e.g. "6 inch"`)
	cmd.Flags().Float64("target-price", 0, "price you hope to pay")
	cmd.Flags().String("priority", "", "priority: low, medium or high")
	cmd.Flags().String("notes", "", "comma-separated tags")
}

// applyWishlistFlags copies every flag the user set onto the item
func applyWishlistFlags(cmd *cobra.Command, w *store.WishlistItem) {
	if cmd.Flags().Changed("name") {
		w.Name, _ = cmd.Flags().GetString("name")
	}
	if cmd.Flags().Changed("series") {
		w.Series, _ = cmd.Flags().GetString("series")
	}
	if cmd.Flags().Changed("wave") {
		w.Wave, _ = cmd.Flags().GetString("wave")
	}
	if cmd.Flags().Changed("manufacturer") {
		w.Manufacturer, _ = cmd.Flags().GetString("manufacturer")
	}
	if cmd.Flags().Changed("year") {
		w.Year, _ = cmd.Flags().GetInt("year")
	}
	if cmd.Flags().Changed("scale") {
		w.Scale, _ = cmd.Flags().GetString("scale")
	}
	if cmd.Flags().Changed("target-price") {
		w.TargetPrice, _ = cmd.Flags().GetFloat64("target-price")
	}
	if cmd.Flags().Changed("priority") {
		w.Priority, _ = cmd.Flags().GetString("priority")
	}
	if cmd.Flags().Changed("notes") {
		w.Notes, _ = cmd.Flags().GetString("notes")
	}
}

// validateWishlistItem checks user-supplied fields before they reach the
// store
func validateWishlistItem(w *store.WishlistItem) error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("name is required: %w", util.ErrValidation)
	}
	switch w.Priority {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("priority %q must be low, medium or high: %w", w.Priority, util.ErrValidation)
	}
	if w.TargetPrice < 0 {
		return fmt.Errorf("target price cannot be negative: %w", util.ErrValidation)
	}
	if w.Year != 0 && (w.Year < 1900 || w.Year > 2030) {
		return fmt.Errorf("year %d out of range (1900-2030): %w", w.Year, util.ErrValidation)
	}
	return nil
}

func runWishlistAdd(cmd *cobra.Command, args []string) error {
	util.SetVerbose(getBool(cmd, "verbose"))
	util.SetQuiet(getBool(cmd, "quiet"))

	w := &store.WishlistItem{Name: strings.TrimSpace(args[0])}
	applyWishlistFlags(cmd, w)

	if err := validateWishlistItem(w); err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.AddWishlistItem(w); err != nil {
		return err
	}

	util.SuccessLog("Added %q to the wishlist (ID %d)", w.Name, w.ID)
	return nil
}

func runWishlistList(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	items, err := db.GetAllWishlistItems()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		util.InfoLog("The wishlist is empty. Add an item with 'afc wishlist add <name>'.")
		return nil
	}

	nameW := util.GetTerminalWidth() - 56
	if nameW < 16 {
		nameW = 16
	}
	if nameW > 40 {
		nameW = 40
	}

	fmt.Printf("%-4s %-*s %-20s %-14s %-8s %7s\n",
		"ID", nameW, "Name", "Series", "Manufacturer", "Priority", "Target")
	fmt.Println(strings.Repeat("-", nameW+56))

	for _, w := range items {
		target := "-"
		if w.TargetPrice > 0 {
			target = fmt.Sprintf("$%.2f", w.TargetPrice)
		}
		fmt.Printf("%-4d %-*s %-20s %-14s %-8s %7s\n",
			w.ID,
			nameW, truncate(w.Name, nameW),
			truncate(w.Series, 20),
			truncate(w.Manufacturer, 14),
			w.Priority, target)
	}
	fmt.Printf("\n%d wishlist items\n", len(items))

	return nil
}

func runWishlistEdit(cmd *cobra.Command, args []string) error {
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

	w, err := db.GetWishlistItem(id)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("wishlist item %d: %w", id, util.ErrNotFound)
	}

	applyWishlistFlags(cmd, w)
	if err := validateWishlistItem(w); err != nil {
		return err
	}

	if err := db.UpdateWishlistItem(w); err != nil {
		return err
	}

	util.SuccessLog("Updated wishlist item %d (%s)", w.ID, w.Name)
	return nil
}

func runWishlistDelete(cmd *cobra.Command, args []string) error {
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

	w, err := db.GetWishlistItem(id)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("wishlist item %d: %w", id, util.ErrNotFound)
	}

	if !yes && !confirm(fmt.Sprintf("Remove %q from the wishlist?", w.Name)) {
		util.InfoLog("Nothing deleted")
		return nil
	}

	if err := db.DeleteWishlistItem(id); err != nil {
		return err
	}

	util.SuccessLog("Removed %q from the wishlist", w.Name)
	return nil
}

func runWishlistPromote(cmd *cobra.Command, args []string) error {
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

	w, err := db.GetWishlistItem(id)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("wishlist item %d: %w", id, util.ErrNotFound)
	}

	figure := &store.Figure{
		Name:         w.Name,
		Series:       w.Series,
		Wave:         w.Wave,
		Manufacturer: w.Manufacturer,
		Year:         w.Year,
		Scale:        w.Scale,
		Notes:        w.Notes,
	}
	figure.PurchasePrice, _ = cmd.Flags().GetFloat64("price")
	figure.Condition, _ = cmd.Flags().GetString("condition")
	figure.Location, _ = cmd.Flags().GetString("location")

	if err := db.PromoteWishlistItem(id, figure); err != nil {
		return err
	}

	util.SuccessLog("Promoted %q into the collection (figure ID %d)", figure.Name, figure.ID)
	return nil
}
