package main

import (
	"fmt"
	"time"

	"github.com/BDisp/app-application-logger/internal/config"
	"github.com/BDisp/app-application-logger/internal/device"
	"github.com/BDisp/app-application-logger/internal/logfile"
	"github.com/BDisp/app-application-logger/internal/platform"

	"github.com/spf13/cobra"
)

var pathDate string

func newPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the log file records are committed to",
		RunE:  runPath,
	}
	cmd.Flags().StringVar(&pathDate, "date", "", "Resolve the file of another day (YYYY-MM-DD)")
	return cmd
}

func runPath(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	when, err := parseDate(pathDate, time.Now())
	if err != nil {
		return err
	}

	// The platform only supplies a fallback machine name
	var source device.IDSource
	if p, err := platform.NewPlatform(); err == nil {
		defer p.Close()
		source = p
	}
	machine := device.NewDeviceManager(source).MachineName(cfg.Machine)

	fmt.Fprintln(cmd.OutOrStdout(), logfile.Resolve(cfg.Path, when, machine))
	return nil
}

func parseDate(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}
