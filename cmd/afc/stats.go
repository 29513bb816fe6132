package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection totals",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Figures:        %d\n", stats.TotalFigures)
	fmt.Printf("Photos:         %d\n", stats.TotalPhotos)
	fmt.Printf("Wishlist items: %d\n", stats.WishlistItems)
	fmt.Printf("Total spent:    $%.2f\n", stats.TotalSpent)
	if stats.TotalValue > 0 {
		fmt.Printf("Current value:  $%.2f\n", stats.TotalValue)
	}

	return nil
}
