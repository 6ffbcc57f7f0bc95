package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BDisp/app-application-logger/internal/config"
	"github.com/BDisp/app-application-logger/internal/database"
	"github.com/BDisp/app-application-logger/internal/models"
	"github.com/BDisp/app-application-logger/internal/record"
	"github.com/BDisp/app-application-logger/internal/repository"

	"github.com/bytedance/sonic"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	historyLimit int
	historyKind  string
	historyJSON  bool
	historyToday bool
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent activity records",
		RunE:  runHistory,
	}
	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 30, "Number of records to show")
	cmd.Flags().StringVar(&historyKind, "kind", "", "Only show records of this kind (e.g. app::focus)")
	cmd.Flags().BoolVar(&historyJSON, "json", false, "Print records as JSON")
	cmd.Flags().BoolVar(&historyToday, "summary", false, "Count today's records per kind instead of listing them")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled in %s", configPath)
	}

	kind := models.Kind(historyKind)
	if kind != "" && !kind.Valid() {
		return fmt.Errorf("unknown record kind %q", historyKind)
	}
	if historyLimit <= 0 {
		return fmt.Errorf("limit must be positive")
	}

	db, err := database.New(cfg.History.Path, zap.NewNop())
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewRecordRepository(db.DB)
	out := cmd.OutOrStdout()

	if historyToday {
		now := time.Now()
		counts, err := repo.CountByKind(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()))
		if err != nil {
			return err
		}
		writeSummary(out, counts)
		return nil
	}

	records, err := repo.Recent(historyLimit, kind)
	if err != nil {
		return err
	}

	if historyJSON {
		return writeJSON(out, records)
	}
	writeTable(out, records, terminalWidth())
	return nil
}

func writeJSON(w io.Writer, records []*models.ActivityRecord) error {
	if records == nil {
		records = []*models.ActivityRecord{}
	}
	data, err := sonic.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeSummary(w io.Writer, counts map[models.Kind]int) {
	for _, kind := range []models.Kind{models.KindAppFocus, models.KindStatusIdle, models.KindStatusStop, models.KindStatusEndOfDay} {
		fmt.Fprintf(w, "%s %d\n", pad(string(kind), 20), counts[kind])
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 60 {
		return 120
	}
	return width
}

// writeTable prints records oldest first, like the log file reads. The
// subject column takes whatever width the fixed columns leave.
func writeTable(w io.Writer, records []*models.ActivityRecord, width int) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records.")
		return
	}

	const (
		timeWidth  = 19
		kindWidth  = 18
		titleWidth = 20
		gap        = "   "
	)
	subjectWidth := max(width-timeWidth-kindWidth-titleWidth-3*len(gap), 10)

	header := pad("Date/Time", timeWidth) + gap + pad("Type", kindWidth) + gap + pad("Title", titleWidth) + gap + "Subject"
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", min(runewidth.StringWidth(header)+subjectWidth-len("Subject"), width)))

	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		title := r.Title
		if title == "" {
			title = "-"
		}
		subject := r.Subject
		if subject == "" || subject == record.Unknown {
			subject = "-"
		}
		fmt.Fprintln(w,
			pad(r.Timestamp.Local().Format(time.DateTime), timeWidth)+gap+
				pad(string(r.Kind), kindWidth)+gap+
				pad(title, titleWidth)+gap+
				runewidth.Truncate(subject, subjectWidth, "…"))
	}
}

// pad truncates or pads s to exactly width display cells
func pad(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}
