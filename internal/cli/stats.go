package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbaliyan/moodlog/internal/output"
	"github.com/rbaliyan/moodlog/stats"
	"github.com/rbaliyan/moodlog/store"
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Show daily counts and OCD index over a window of days",
	Long: `Show one row per day ending today (or --at), with days that have no
records filled in as zero.

Examples:
  moodlog window                # The configured window
  moodlog window --days 30
  moodlog window --at 2024-05-01 --days 7`,
	Args: cobra.NoArgs,
	RunE: runWindow,
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Fit the OCD index over the window and report its direction",
	Args:  cobra.NoArgs,
	RunE:  runTrend,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show journal totals",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(windowCmd, trendCmd, statsCmd)

	windowCmd.Flags().Int("days", 0, "window size in days (default from config)")
	windowCmd.Flags().String("at", "", "last day of the window (default today)")
	windowCmd.Flags().Bool("json", false, "output as JSON")

	trendCmd.Flags().Bool("json", false, "output as JSON")
	statsCmd.Flags().Bool("json", false, "output as JSON")
}

// bucketView is the JSON form of a daily bucket.
type bucketView struct {
	Day    string           `json:"day"`
	Counts map[string]int64 `json:"counts"`
	Index  float64          `json:"index"`
}

func bucketViews(window []store.DailyBucket) []bucketView {
	views := make([]bucketView, len(window))
	for i, b := range window {
		views[i] = bucketView{Day: b.Day.Format(time.DateOnly), Counts: b.Counts.Map(), Index: stats.Index(b)}
	}
	return views
}

func runWindow(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)
	days, _ := cmd.Flags().GetInt("days")
	at, _ := cmd.Flags().GetString("at")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if days == 0 {
		days = cfg.WindowSize
	}
	anchor, err := parseTime(at, time.Now())
	if err != nil {
		return err
	}

	return withSession(cmd.Context(), false, func(s *session) error {
		window, err := s.journal.WindowAt(cmd.Context(), anchor, days)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), bucketViews(window))
		}
		return renderWindow(cmd, printer, window, stats.Indices(window))
	})
}

func renderWindow(cmd *cobra.Command, printer *output.Printer, window []store.DailyBucket, indices []float64) error {
	headers := []string{"DAY"}
	for _, st := range store.States {
		headers = append(headers, strings.ToUpper(st.String()))
	}
	headers = append(headers, "INDEX")

	table := output.NewTable(cmd.OutOrStdout(), headers)
	for i, b := range window {
		row := []string{b.Day.Format("Mon 2006-01-02")}
		for _, st := range store.States {
			row = append(row, strconv.FormatInt(b.Counts.Get(st), 10))
		}
		index := formatIndex(indices[i])
		if b.Counts.IsZero() {
			index = printer.Dim(index)
		}
		row = append(row, index)
		table.AddRow(row...)
	}
	return table.Render()
}

// trendView is the JSON form of a trend result.
type trendView struct {
	Trend     string       `json:"trend"`
	Slope     *float64     `json:"slope,omitempty"`
	Intercept *float64     `json:"intercept,omitempty"`
	Window    []bucketView `json:"window"`
}

func runTrend(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return withSession(cmd.Context(), false, func(s *session) error {
		res, err := s.journal.Trend(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			view := trendView{Trend: res.Trend.String(), Window: bucketViews(res.Window)}
			if res.OK {
				view.Slope, view.Intercept = &res.Line.Slope, &res.Line.Intercept
			}
			return writeJSON(cmd.OutOrStdout(), view)
		}

		if err := renderWindow(cmd, printer, res.Window, res.Indices); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout())
		printer.Print("Trend: %s", printer.TrendBadge(res.Trend.String()))
		if res.OK {
			printer.Print("Slope: %+.3f per day", res.Line.Slope)
		} else {
			printer.Info("Not enough days to fit a trend.")
		}
		return nil
	})
}

// statsView is the JSON form of journal statistics.
type statsView struct {
	TotalRecords  int64            `json:"totalRecords"`
	DayCount      int64            `json:"dayCount"`
	AveragePerDay float64          `json:"averagePerDay"`
	StateTotals   map[string]int64 `json:"stateTotals"`
}

func runStats(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return withSession(cmd.Context(), false, func(s *session) error {
		st, err := s.journal.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), statsView{
				TotalRecords:  st.TotalRecords,
				DayCount:      st.DayCount,
				AveragePerDay: st.AveragePerDay(),
				StateTotals:   st.StateTotals.Map(),
			})
		}

		printer.Header("Journal of " + cfg.User)
		printer.Print("Records:       %d", st.TotalRecords)
		printer.Print("Days:          %d", st.DayCount)
		printer.Print("Per day:       %.2f", st.AveragePerDay())
		for _, state := range store.States {
			printer.Print("%-14s %d", printer.StateBadge(state.String())+":", st.StateTotals.Get(state))
		}
		return nil
	})
}

func formatIndex(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
