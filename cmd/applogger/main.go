package main

import (
	"fmt"
	"os"

	"github.com/BDisp/app-application-logger/internal/config"

	"github.com/spf13/cobra"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "applogger",
		Short: "Log which application has focus to daily files",
		Long: `applogger samples the focused application and user idleness and appends a
timestamped, tab separated record trail to rotating log files.

Examples:
  applogger                      # Start logging with applogger.yaml
  applogger run --tray           # Start logging with a tray icon
  applogger history --limit 20   # Show the most recent records
  applogger path --date 2024-01-31`,
		SilenceUsage: true,
		RunE:         runMonitor,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath,
		"Path to configuration file")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newPathCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
