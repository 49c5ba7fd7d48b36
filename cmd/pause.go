package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reviewloop/reviewloop/internal/models"
)

var pauseCmd = &cobra.Command{
	Use:   "pause <subject> [duration]",
	Short: "Pause automatic review triggers for a subject",
	Long: `Pause automatic review triggers. New pushes are still observed and their
hunks accumulate, but no merge happens until resume or an explicit
review. An optional duration (e.g. 24h, 90m) limits the pause;
without one the pause holds until an explicit resume.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := models.ParseSubject(args[0])
		if err != nil {
			return err
		}

		var d time.Duration
		if len(args) == 2 {
			d, err = time.ParseDuration(args[1])
			if err != nil || d <= 0 {
				return fmt.Errorf("invalid pause duration %q", args[1])
			}
		}

		ctrl, _, err := getController()
		if err != nil {
			return err
		}

		if err := ctrl.Pause(cmd.Context(), subject, d); err != nil {
			return err
		}

		if d > 0 {
			ui.Success("Paused %s for %s", subject, d)
		} else {
			ui.Success("Paused %s until resumed", subject)
		}
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <subject>",
	Short: "Resume automatic triggers and review accumulated changes",
	Long: `Resume a paused subject. Runs an immediate review cycle covering
everything accumulated since the last merge.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := models.ParseSubject(args[0])
		if err != nil {
			return err
		}

		ctrl, _, err := getController()
		if err != nil {
			return err
		}

		res, err := ctrl.Resume(cmd.Context(), subject)
		if err != nil {
			return err
		}

		ui.Success("Resumed %s", subject)
		printCycle(res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
}
