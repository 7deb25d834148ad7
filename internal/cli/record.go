package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbaliyan/moodlog/internal/output"
	"github.com/rbaliyan/moodlog/store"
)

// timeLayouts are accepted by --at flags, interpreted in the configured
// location.
var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", time.DateOnly}

var addCmd = &cobra.Command{
	Use:   "add <state> [note]",
	Short: "Record how you feel",
	Long: `Record a mental state with an optional note.

States: distressed, anxious, neutral, happy.

Examples:
  moodlog add happy
  moodlog add anxious "checked the door three times"
  moodlog add distressed --at "2024-05-09 21:30"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAdd,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a record",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List records, newest first",
	Long: `List records, newest first. Records sharing a timestamp are listed
most severe first.

Examples:
  moodlog list                  # Every record
  moodlog list --notes          # Only records with a note
  moodlog list --limit 10       # The ten most recent
  moodlog list --json           # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "List records grouped into today, the past week and earlier",
	Args:  cobra.NoArgs,
	RunE:  runSections,
}

func init() {
	rootCmd.AddCommand(addCmd, deleteCmd, listCmd, sectionsCmd)

	addCmd.Flags().String("at", "", "time of the record (default now)")

	listCmd.Flags().Bool("notes", false, "only records with a note")
	listCmd.Flags().Int("limit", 0, "maximum number of records")
	listCmd.Flags().Bool("json", false, "output as JSON")
}

func runAdd(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)

	state, err := store.ParseMentalState(args[0])
	if err != nil {
		return err
	}
	var note string
	if len(args) == 2 {
		note = args[1]
	}
	at, _ := cmd.Flags().GetString("at")
	ts, err := parseTime(at, time.Now())
	if err != nil {
		return err
	}

	return withSession(cmd.Context(), true, func(s *session) error {
		rec, err := s.journal.Add(cmd.Context(), ts, state, note)
		if err != nil {
			return err
		}
		printer.Success("Recorded %s at %s (%s)", printer.StateBadge(rec.State.String()),
			rec.Timestamp.Format("2006-01-02 15:04"), rec.ID)
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)

	return withSession(cmd.Context(), true, func(s *session) error {
		deleted, err := s.journal.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !deleted {
			printer.Warning("No record with id %s", args[0])
			return nil
		}
		printer.Success("Deleted %s", args[0])
		return nil
	})
}

func runList(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)
	notes, _ := cmd.Flags().GetBool("notes")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return withSession(cmd.Context(), false, func(s *session) error {
		records, err := s.journal.List(cmd.Context(), store.ListOptions{WithNote: notes, Limit: limit})
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), recordViews(records))
		}
		if len(records) == 0 {
			printer.Info("No records yet. Try: moodlog add happy")
			return nil
		}
		return renderRecords(cmd.OutOrStdout(), printer, records)
	})
}

func runSections(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)

	return withSession(cmd.Context(), false, func(s *session) error {
		sections, err := s.journal.Sections(cmd.Context())
		if err != nil {
			return err
		}
		groups := []struct {
			title   string
			records []store.Record
		}{
			{"Today", sections.Today},
			{"Past week", sections.PastWeek},
			{"Earlier", sections.Earlier},
		}
		for _, g := range groups {
			if len(g.records) == 0 {
				continue
			}
			printer.Header(fmt.Sprintf("%s (%d)", g.title, len(g.records)))
			if err := renderRecords(cmd.OutOrStdout(), printer, g.records); err != nil {
				return err
			}
		}
		if sections.Len() == 0 {
			printer.Info("No records yet.")
		}
		return nil
	})
}

func renderRecords(w io.Writer, printer *output.Printer, records []store.Record) error {
	table := output.NewTable(w, []string{"ID", "TIME", "STATE", "NOTE"})
	for _, r := range records {
		table.AddRow(
			printer.Dim(r.ID),
			r.Timestamp.Format("2006-01-02 15:04"),
			printer.StateBadge(r.State.String()),
			truncate(r.Note, 60),
		)
	}
	return table.Render()
}

// recordView is the JSON form of a record.
type recordView struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`
	Note      string    `json:"note,omitempty"`
	Day       string    `json:"day"`
}

func recordViews(records []store.Record) []recordView {
	views := make([]recordView, len(records))
	for i, r := range records {
		views[i] = recordView{
			ID:        r.ID,
			Timestamp: r.Timestamp,
			State:     r.State.String(),
			Note:      r.Note,
			Day:       r.Day.Format(time.DateOnly),
		}
	}
	return views
}

// parseTime parses an --at value in the configured location. An empty
// value means now.
func parseTime(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now, nil
	}
	loc, err := cfg.LoadLocation()
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use RFC 3339 or \"2006-01-02 15:04\")", value)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
