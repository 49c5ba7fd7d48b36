package cmd

import (
	"github.com/spf13/cobra"

	"github.com/reviewloop/reviewloop/internal/models"
)

var dismissCmd = &cobra.Command{
	Use:   "dismiss <subject> <finding>",
	Short: "Dismiss a finding",
	Long: `Dismiss a finding by id (full or unique prefix). Dismissal is sticky:
re-detection never reopens a dismissed finding.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := models.ParseSubject(args[0])
		if err != nil {
			return err
		}

		ctrl, _, err := getController()
		if err != nil {
			return err
		}

		f, err := ctrl.Dismiss(cmd.Context(), subject, args[1])
		if err != nil {
			return err
		}

		ui.Success("Dismissed %s (%s:%d-%d, %s)", f.ID[:8], f.FilePath, f.Lines.Start, f.Lines.End, f.Category)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dismissCmd)
}
