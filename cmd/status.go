package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/output"
	"github.com/reviewloop/reviewloop/internal/report"
	"github.com/reviewloop/reviewloop/internal/store"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status [subject]",
	Short: "Show review status",
	Long: `Show a cross-subject overview or the detailed report for one subject.

Without arguments, shows a summary table of all tracked subjects.
With a subject, shows its full report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return statusSubjectRun(cmd.Context(), args[0])
		}
		return statusOverviewRun()
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusOutput, "output", "table", "Output format: table, yaml, or markdown")
	rootCmd.AddCommand(statusCmd)
}

func statusOverviewRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	subjects, err := s.ListSubjects(ctx)
	if err != nil {
		return err
	}

	if len(subjects) == 0 {
		ui.Info("No review subjects tracked. Use 'reviewloop review <subject>' to get started.")
		return nil
	}

	table := ui.Table([]string{"Subject", "Open", "Resolved", "Paused", "Last Review"})

	for _, sub := range subjects {
		state, err := s.Load(ctx, sub)
		if err != nil {
			if errors.Is(err, store.ErrCorruptRecord) {
				table.Append([]string{sub.String(), "-", "-", "-", output.Red("corrupt")})
				continue
			}
			return err
		}

		rep := report.Project(state)

		paused := "no"
		if state.Paused {
			paused = output.Yellow("yes")
			if state.PauseUntil != nil {
				paused = output.Yellow("until " + state.PauseUntil.UTC().Format("2006-01-02 15:04"))
			}
		}

		lastReview := "never"
		if state.LastReviewAt != nil {
			lastReview = timeAgo(*state.LastReviewAt)
		}

		table.Append([]string{
			sub.String(),
			fmt.Sprintf("%d", rep.Summary.Open),
			fmt.Sprintf("%d", rep.Summary.Resolved+rep.Summary.Invalidated+rep.Summary.Dismissed),
			paused,
			lastReview,
		})
	}

	return table.Render()
}

func statusSubjectRun(ctx context.Context, rawSubject string) error {
	subject, err := models.ParseSubject(rawSubject)
	if err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	state, err := s.Load(ctx, subject)
	if err != nil {
		return err
	}

	rep := report.Project(state)

	switch statusOutput {
	case "yaml":
		out, err := report.YAML(rep)
		if err != nil {
			return err
		}
		fmt.Fprint(ui.Out, out)
		return nil
	case "markdown":
		fmt.Fprintln(ui.Out, report.Markdown(rep))
		return nil
	case "table":
		return statusSubjectTable(state, rep)
	default:
		return fmt.Errorf("unknown output format %q (want table, yaml, or markdown)", statusOutput)
	}
}

func statusSubjectTable(state *models.ReviewState, rep models.Report) error {
	ui.Info("%s: %d open (%d error, %d warning, %d info), %d reviewed commits",
		rep.Subject, rep.Summary.Open, rep.Summary.Errors, rep.Summary.Warnings, rep.Summary.Infos, rep.Commits)
	if state.Paused {
		ui.Warning("Automatic triggers are paused")
	}

	if len(rep.Active) > 0 {
		table := ui.Table([]string{"Severity", "Location", "Category", "ID", "Message"})
		for _, f := range rep.Active {
			table.Append([]string{
				output.SeverityColor(string(f.Severity)),
				fmt.Sprintf("%s:%d-%d", f.FilePath, f.Lines.Start, f.Lines.End),
				f.Category,
				f.ID[:8],
				f.Message,
			})
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	if len(rep.Resolved) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Status", "Location", "Category", "ID"})
		for _, r := range rep.Resolved {
			table.Append([]string{
				output.StatusColor(string(r.Status)),
				fmt.Sprintf("%s:%d-%d", r.FilePath, r.Lines.Start, r.Lines.End),
				r.Category,
				r.ID[:8],
			})
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	return nil
}

// timeAgo renders a timestamp as a relative duration.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
