package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/store"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <subject>",
	Short: "Delete a subject's review state",
	Long: `Delete a subject's persisted review state entirely, e.g. after the
change-set is closed. This is the only way a record is ever removed;
state never expires on its own.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := models.ParseSubject(args[0])
		if err != nil {
			return err
		}

		s, err := getStore()
		if err != nil {
			return err
		}

		if !deleteForce {
			if _, err := s.Load(cmd.Context(), subject); errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no review state for %s", subject)
			}
		}

		ctrl, _, err := getController()
		if err != nil {
			return err
		}
		if err := ctrl.Delete(cmd.Context(), subject); err != nil {
			return err
		}

		ui.Success("Deleted review state for %s", subject)
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Succeed even if no state exists")
	rootCmd.AddCommand(deleteCmd)
}
