package cli

import (
	"github.com/spf13/cobra"

	"github.com/rbaliyan/moodlog/internal/output"
	"github.com/rbaliyan/moodlog/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update your profile",
	Args:  cobra.NoArgs,
	RunE:  runProfileShow,
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update profile fields",
	Long: `Update profile fields. Only the flags given are changed.

Examples:
  moodlog profile set --name Sam
  moodlog profile set --symptoms "checking, counting"`,
	Args: cobra.NoArgs,
	RunE: runProfileSet,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd)

	profileCmd.Flags().Bool("json", false, "output as JSON")
	profileSetCmd.Flags().String("name", "", "display name")
	profileSetCmd.Flags().String("avatar", "", "avatar identifier")
	profileSetCmd.Flags().String("symptoms", "", "description of current symptoms")
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return withSession(cmd.Context(), false, func(s *session) error {
		p, err := s.journal.Profile(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), p)
		}
		printProfile(printer, p)
		return nil
	})
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)
	flags := cmd.Flags()

	return withSession(cmd.Context(), true, func(s *session) error {
		p, err := s.journal.Profile(cmd.Context())
		if err != nil {
			return err
		}
		if flags.Changed("name") {
			p.Username, _ = flags.GetString("name")
		}
		if flags.Changed("avatar") {
			p.Avatar, _ = flags.GetString("avatar")
		}
		if flags.Changed("symptoms") {
			p.Symptoms, _ = flags.GetString("symptoms")
		}
		if err := s.journal.SaveProfile(cmd.Context(), p); err != nil {
			return err
		}
		printer.Success("Profile saved")
		printProfile(printer, p)
		return nil
	})
}

func printProfile(printer *output.Printer, p *profile.Profile) {
	printer.Print("User:     %s", p.UserID)
	printer.Print("Name:     %s", p.Username)
	printer.Print("Avatar:   %s", p.Avatar)
	printer.Print("Symptoms: %s", p.Symptoms)
	if prompt := p.Prompt(); prompt != "" {
		printer.Warning("%s", prompt)
	}
}
