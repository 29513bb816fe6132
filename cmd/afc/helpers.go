package main

import (
	"fmt"

	"github.com/franz/figure-curator/internal/report"
	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// getBool reads a boolean setting with flag > env > config precedence. The
// persistent flags are bound to viper, but an explicitly set flag should
// win even when the config file says otherwise.
func getBool(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Changed(name) {
		value, _ := cmd.Flags().GetBool(name)
		return value
	}
	return viper.GetBool(name)
}

// openStore opens the collection database, creating it on first use
func openStore() (*store.Store, error) {
	path := databasePath()
	util.DebugLog("Opening database: %s", path)

	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return db, nil
}

// openLogger creates the JSONL event logger for long-running operations.
// Logging must never stop an operation, so failures degrade to a null
// logger with a warning.
func openLogger() *report.EventLogger {
	logLevel := report.LevelInfo
	if viper.GetBool("quiet") {
		logLevel = report.LevelWarning
	} else if viper.GetBool("verbose") {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger(artifactsDir(), logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}

	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}
	return logger
}
