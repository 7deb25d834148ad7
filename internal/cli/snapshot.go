package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rbaliyan/moodlog/snapshot"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON snapshot of the journal",
	Long: `Write a JSON snapshot of every record and daily bucket.

Examples:
  moodlog export > journal.json
  moodlog export --out journal.json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the journal with a JSON snapshot",
	Long: `Replace the journal with a JSON snapshot. Use "-" to read standard
input. The snapshot is validated before anything is changed.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a snapshot to the configured archive",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <uri>",
	Short: "Replace the journal with a snapshot from the archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd, backupCmd, restoreCmd)

	exportCmd.Flags().StringP("out", "o", "", "output file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)
	out, _ := cmd.Flags().GetString("out")

	return withSession(cmd.Context(), false, func(s *session) error {
		snap, err := s.journal.Export(cmd.Context())
		if err != nil {
			return err
		}
		if out == "" {
			return snapshot.Encode(cmd.OutOrStdout(), snap)
		}
		if err := writeFileAtomic(out, func(f *os.File) error { return snapshot.Encode(f, snap) }); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		printer.Success("Exported %d records to %s", len(snap.Records), out)
		return nil
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)

	var r io.Reader
	if args[0] == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	snap, err := snapshot.Decode(r)
	if err != nil {
		return err
	}

	return withSession(cmd.Context(), true, func(s *session) error {
		if err := s.journal.Import(cmd.Context(), snap); err != nil {
			return err
		}
		if snap.OwnerID != cfg.User {
			printer.Warning("Snapshot belonged to %s; imported into %s", snap.OwnerID, cfg.User)
		}
		printer.Success("Imported %d records over %d days", len(snap.Records), len(snap.Buckets))
		return nil
	})
}

func runBackup(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)

	return withSession(cmd.Context(), false, func(s *session) error {
		uri, err := s.journal.Backup(cmd.Context())
		if err != nil {
			return err
		}
		printer.Success("Backed up to %s", uri)
		return nil
	})
}

func runRestore(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)

	return withSession(cmd.Context(), true, func(s *session) error {
		if err := s.journal.Restore(cmd.Context(), args[0]); err != nil {
			return err
		}
		printer.Success("Restored from %s", args[0])
		return nil
	})
}
