package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Every path below resolves with the usual precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (AFC_*)
// 3. Config file
// 4. Derived from data-dir

// dataDir returns the base directory holding the database, photos and
// backups
func dataDir() string {
	dir := viper.GetString("data-dir")
	if dir == "" {
		return "."
	}
	return dir
}

// databasePath returns the SQLite database file
func databasePath() string {
	if path := viper.GetString("db"); path != "" {
		return path
	}
	return filepath.Join(dataDir(), "collection.db")
}

// photosDir returns the managed photos directory
func photosDir() string {
	if path := viper.GetString("photos-dir"); path != "" {
		return path
	}
	return filepath.Join(dataDir(), "photos")
}

// backupsDir returns the directory timestamped backup archives land in
func backupsDir() string {
	if path := viper.GetString("backups-dir"); path != "" {
		return path
	}
	return filepath.Join(dataDir(), "backups")
}

// artifactsDir returns the directory for event logs and reports
func artifactsDir() string {
	if path := viper.GetString("artifacts-dir"); path != "" {
		return path
	}
	return filepath.Join(dataDir(), "artifacts")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the paths the other commands will use, after flags, environment
variables (AFC_*) and the config file have been applied.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "(none)"
	}

	fmt.Printf("Config file:    %s\n", configFile)
	fmt.Printf("Data directory: %s\n", dataDir())
	fmt.Printf("Database:       %s\n", databasePath())
	fmt.Printf("Photos:         %s\n", photosDir())
	fmt.Printf("Backups:        %s\n", backupsDir())
	fmt.Printf("Artifacts:      %s\n", artifactsDir())

	return nil
}
