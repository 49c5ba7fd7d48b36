package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reviewloop/reviewloop/internal/lifecycle"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/output"
	"github.com/reviewloop/reviewloop/internal/report"
)

var reviewSkipPublish bool

var reviewCmd = &cobra.Command{
	Use:   "review <subject>",
	Short: "Run a review cycle now",
	Long: `Run an explicit review cycle for a subject, merging the analysis of all
commits accumulated since the last review. Runs even while the subject
is paused.

The subject is [provider/]owner/repo#number, e.g. acme/widgets#42.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd.Context(), args[0], false)
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <subject>",
	Short: "Evaluate an automatic trigger (new commits pushed)",
	Long: `Evaluate an automatic review trigger, as a webhook handler or CI job
would. Unlike 'review', a paused subject skips the merge; its hunks keep
accumulating until resume.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd.Context(), args[0], true)
	},
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewSkipPublish, "skip-publish", false, "Do not publish the report comment")
	triggerCmd.Flags().BoolVar(&reviewSkipPublish, "skip-publish", false, "Do not publish the report comment")
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(triggerCmd)
}

func reviewRun(ctx context.Context, rawSubject string, auto bool) error {
	subject, err := models.ParseSubject(rawSubject)
	if err != nil {
		return err
	}

	ctrl, host, err := getController()
	if err != nil {
		return err
	}

	var res *lifecycle.CycleResult
	if auto {
		res, err = ctrl.HandlePush(ctx, subject)
	} else {
		res, err = ctrl.Review(ctx, subject)
	}
	if err != nil {
		return err
	}

	if res.Skipped {
		ui.Info("Skipped %s: %s", subject, res.SkipReason)
		return nil
	}

	if res.StateReset {
		ui.Warning("State for %s was corrupt and has been reset; prior record archived for inspection", subject)
	}

	printCycle(res)

	if reviewSkipPublish || res.Report == nil {
		return nil
	}
	if err := host.PublishReport(ctx, subject, report.Markdown(*res.Report)); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	ui.Success("Report published for %s", subject)
	return nil
}

func printCycle(res *lifecycle.CycleResult) {
	ui.Success("Reviewed %s at %s", res.Subject, shortCommit(res.HeadCommit))
	ui.Info("%d opened, %d refreshed, %d resolved, %d invalidated",
		len(res.Opened), len(res.Refreshed), len(res.Resolved), len(res.Invalidated))
	if res.Pruned > 0 {
		ui.VerboseLog("Pruned %d expired findings", res.Pruned)
	}

	if res.Report == nil || len(res.Report.Active) == 0 {
		return
	}

	table := ui.Table([]string{"Severity", "Location", "Category", "ID", "Message"})
	for _, f := range res.Report.Active {
		table.Append([]string{
			output.SeverityColor(string(f.Severity)),
			fmt.Sprintf("%s:%d-%d", f.FilePath, f.Lines.Start, f.Lines.End),
			f.Category,
			f.ID[:8],
			f.Message,
		})
	}
	_ = table.Render()
}

func shortCommit(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}
