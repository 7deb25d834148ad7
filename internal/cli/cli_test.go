package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// setupCLITest writes a config using the file store and file archive
// under a temp dir and returns its path.
func setupCLITest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := "user: alice\n" +
		"location: UTC\n" +
		"window_size: 7\n" +
		"store:\n  driver: file\n  dir: " + filepath.Join(dir, "data") + "\n" +
		"archive:\n  driver: file\n  dir: " + filepath.Join(dir, "archive") + "\n" +
		"logging:\n  level: error\n" +
		"output:\n  colors: false\n"
	path := filepath.Join(dir, "moodlog.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// resetFlags restores every flag to its default so values do not leak
// between executions of the shared command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"--config", cfgPath, "--no-color"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, cfgPath, args...)
	if err != nil {
		t.Fatalf("moodlog %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func listRecords(t *testing.T, cfgPath string, args ...string) []recordView {
	t.Helper()
	out := mustRun(t, cfgPath, append([]string{"list", "--json"}, args...)...)
	var records []recordView
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	return records
}

func TestRootCmd_Help(t *testing.T) {
	out := mustRun(t, setupCLITest(t), "--help")
	for _, cmd := range []string{"add", "delete", "list", "sections", "window", "trend", "stats", "export", "import", "backup", "restore", "profile", "version"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("expected help output to list %q command, got:\n%s", cmd, out)
		}
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	if _, err := runCLI(t, setupCLITest(t), "nonexistent-command"); err == nil {
		t.Fatal("expected error for unknown command, got nil")
	}
}

func TestAddAndList(t *testing.T) {
	cfgPath := setupCLITest(t)

	out := mustRun(t, cfgPath, "add", "happy", "calm morning", "--at", "2024-05-10 08:00")
	if !strings.Contains(out, "Recorded Happy") {
		t.Errorf("unexpected add output: %s", out)
	}
	mustRun(t, cfgPath, "add", "Anxious", "--at", "2024-05-10 08:00")
	mustRun(t, cfgPath, "add", "neutral", "--at", "2024-05-01")

	records := listRecords(t, cfgPath)
	if len(records) != 3 {
		t.Fatalf("expected 3 records persisted across runs, got %d", len(records))
	}
	// Same timestamp: more severe first.
	if records[0].State != "Anxious" || records[1].State != "Happy" || records[2].Day != "2024-05-01" {
		t.Errorf("unexpected order: %+v", records)
	}

	noted := listRecords(t, cfgPath, "--notes")
	if len(noted) != 1 || noted[0].Note != "calm morning" {
		t.Errorf("unexpected noted records: %+v", noted)
	}
	if limited := listRecords(t, cfgPath, "--limit", "1"); len(limited) != 1 {
		t.Errorf("expected 1 record with --limit, got %d", len(limited))
	}

	table := mustRun(t, cfgPath, "list")
	if !strings.Contains(table, "calm morning") || !strings.Contains(table, "STATE") {
		t.Errorf("unexpected table output:\n%s", table)
	}
}

func TestAddInvalid(t *testing.T) {
	cfgPath := setupCLITest(t)

	if _, err := runCLI(t, cfgPath, "add", "ecstatic"); err == nil {
		t.Error("expected error for unknown state")
	}
	if _, err := runCLI(t, cfgPath, "add", "happy", "--at", "yesterday-ish"); err == nil {
		t.Error("expected error for unparseable time")
	}
	if _, err := runCLI(t, cfgPath, "add", "happy", "--at", time.Now().AddDate(1, 0, 0).Format(time.RFC3339)); err == nil {
		t.Error("expected error for a future timestamp")
	}
	if records := listRecords(t, cfgPath); len(records) != 0 {
		t.Errorf("rejected adds must not store records, got %+v", records)
	}
}

func TestDelete(t *testing.T) {
	cfgPath := setupCLITest(t)
	mustRun(t, cfgPath, "add", "distressed", "--at", "2024-05-10 08:00")
	id := listRecords(t, cfgPath)[0].ID

	if out := mustRun(t, cfgPath, "delete", id); !strings.Contains(out, "Deleted") {
		t.Errorf("unexpected delete output: %s", out)
	}
	if out := mustRun(t, cfgPath, "delete", id); !strings.Contains(out, "No record") {
		t.Errorf("expected warning for unknown id, got: %s", out)
	}
	if records := listRecords(t, cfgPath); len(records) != 0 {
		t.Errorf("expected empty journal, got %+v", records)
	}
}

func TestWindowJSON(t *testing.T) {
	cfgPath := setupCLITest(t)
	mustRun(t, cfgPath, "add", "distressed", "--at", "2024-05-09 10:00")
	mustRun(t, cfgPath, "add", "anxious", "--at", "2024-05-10 09:00")

	out := mustRun(t, cfgPath, "window", "--days", "3", "--at", "2024-05-10", "--json")
	var window []bucketView
	if err := json.Unmarshal([]byte(out), &window); err != nil {
		t.Fatalf("decode window: %v\n%s", err, out)
	}
	if len(window) != 3 {
		t.Fatalf("expected 3 days, got %d", len(window))
	}
	wantDays := []string{"2024-05-08", "2024-05-09", "2024-05-10"}
	wantIndex := []float64{0, 0.4, 0.3}
	for i := range window {
		if window[i].Day != wantDays[i] {
			t.Errorf("day %d: got %s, want %s", i, window[i].Day, wantDays[i])
		}
		if diff := window[i].Index - wantIndex[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("day %d: index %v, want %v", i, window[i].Index, wantIndex[i])
		}
	}

	if _, err := runCLI(t, cfgPath, "window", "--days", "-2"); err == nil {
		t.Error("expected error for negative window")
	}

	table := mustRun(t, cfgPath, "window", "--days", "3", "--at", "2024-05-10")
	if !strings.Contains(table, "INDEX") || !strings.Contains(table, "0.40") {
		t.Errorf("unexpected window table:\n%s", table)
	}
}

func TestTrendJSON(t *testing.T) {
	cfgPath := setupCLITest(t)
	now := time.Now().UTC()
	mustRun(t, cfgPath, "add", "distressed", "--at", now.AddDate(0, 0, -2).Format(time.RFC3339))
	mustRun(t, cfgPath, "add", "happy")

	out := mustRun(t, cfgPath, "trend", "--json")
	var view trendView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode trend: %v\n%s", err, out)
	}
	if len(view.Window) != 7 {
		t.Errorf("expected the configured 7 day window, got %d", len(view.Window))
	}
	// Indices 0.4 and 0.1 on offsets 4 and 6 of a zero week.
	if view.Trend != "Increasing" || view.Slope == nil || *view.Slope <= 0 {
		t.Errorf("unexpected trend %+v", view)
	}

	text := mustRun(t, cfgPath, "trend")
	if !strings.Contains(text, "Trend:") {
		t.Errorf("unexpected trend output:\n%s", text)
	}
}

func TestStatsAndSections(t *testing.T) {
	cfgPath := setupCLITest(t)
	mustRun(t, cfgPath, "add", "happy")
	mustRun(t, cfgPath, "add", "anxious", "--at", "2020-01-01")

	out := mustRun(t, cfgPath, "stats", "--json")
	var st statsView
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode stats: %v\n%s", err, out)
	}
	if st.TotalRecords != 2 || st.DayCount != 2 || st.StateTotals["Anxious"] != 1 {
		t.Errorf("unexpected stats %+v", st)
	}

	sections := mustRun(t, cfgPath, "sections")
	if !strings.Contains(sections, "Today (1)") || !strings.Contains(sections, "Earlier (1)") {
		t.Errorf("unexpected sections output:\n%s", sections)
	}
	if strings.Contains(sections, "Past week") {
		t.Errorf("empty sections should be omitted:\n%s", sections)
	}
}

func TestExportImport(t *testing.T) {
	cfgPath := setupCLITest(t)
	mustRun(t, cfgPath, "add", "happy", "sunny", "--at", "2024-05-10 08:00")
	mustRun(t, cfgPath, "add", "distressed", "--at", "2024-05-08 08:00")

	file := filepath.Join(t.TempDir(), "alice.json")
	if out := mustRun(t, cfgPath, "export", "--out", file); !strings.Contains(out, "Exported 2 records") {
		t.Errorf("unexpected export output: %s", out)
	}

	out := mustRun(t, cfgPath, "--user", "bob", "import", file)
	if !strings.Contains(out, "Imported 2 records") || !strings.Contains(out, "belonged to alice") {
		t.Errorf("unexpected import output: %s", out)
	}
	bob := listRecords(t, cfgPath, "--user", "bob")
	if len(bob) != 2 || bob[0].Note != "sunny" {
		t.Errorf("unexpected imported records %+v", bob)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"version":99}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, cfgPath, "--user", "bob", "import", bad); err == nil {
		t.Error("expected error for unsupported snapshot")
	}
	if got := listRecords(t, cfgPath, "--user", "bob"); len(got) != 2 {
		t.Errorf("rejected import changed the journal: %+v", got)
	}
}

func TestBackupRestore(t *testing.T) {
	cfgPath := setupCLITest(t)
	mustRun(t, cfgPath, "add", "anxious", "hand washing", "--at", "2024-05-10 08:00")

	out := mustRun(t, cfgPath, "backup")
	uri := regexp.MustCompile(`file://\S+`).FindString(out)
	if uri == "" {
		t.Fatalf("no uri in backup output: %s", out)
	}

	mustRun(t, cfgPath, "add", "happy", "--at", "2024-05-10 09:00")
	if n := len(listRecords(t, cfgPath)); n != 2 {
		t.Fatalf("expected 2 records before restore, got %d", n)
	}

	mustRun(t, cfgPath, "restore", uri)
	records := listRecords(t, cfgPath)
	if len(records) != 1 || records[0].Note != "hand washing" {
		t.Errorf("unexpected restored records %+v", records)
	}
}

func TestProfile(t *testing.T) {
	cfgPath := setupCLITest(t)

	if out := mustRun(t, cfgPath, "profile"); !strings.Contains(out, "Please update your profile") {
		t.Errorf("expected update prompt for empty profile, got: %s", out)
	}

	mustRun(t, cfgPath, "profile", "set", "--name", "Sam", "--symptoms", "checking")
	mustRun(t, cfgPath, "profile", "set", "--avatar", "owl")

	out := mustRun(t, cfgPath, "profile", "--json")
	var p struct {
		UserID   string `json:"user_id"`
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
		Symptoms string `json:"symptoms"`
	}
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("decode profile: %v\n%s", err, out)
	}
	if p.UserID != "alice" || p.Username != "Sam" || p.Avatar != "owl" || p.Symptoms != "checking" {
		t.Errorf("unexpected profile %+v", p)
	}
}

func TestVersionShort(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	out := mustRun(t, setupCLITest(t), "version", "--short")
	if strings.TrimSpace(out) != "1.2.3" {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestParseTime(t *testing.T) {
	resetFlags(rootCmd)
	cfgFile = setupCLITest(t)
	if err := initConfig(new(bytes.Buffer)); err != nil {
		t.Fatalf("init config: %v", err)
	}

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"", now},
		{"2024-05-09", time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)},
		{"2024-05-09 21:30", time.Date(2024, 5, 9, 21, 30, 0, 0, time.UTC)},
		{"2024-05-09T21:30:00+09:00", time.Date(2024, 5, 9, 12, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseTime(tt.in, now)
		if err != nil {
			t.Errorf("parseTime(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
