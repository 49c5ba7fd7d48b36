// Package report projects a ReviewState into its published form. Project
// is pure and deterministic: identical states yield byte-identical output,
// so the publisher can detect "no visible change" and skip an update.
package report

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reviewloop/reviewloop/internal/models"
)

// Marker opens every published comment so the publisher can find and
// update its own comment instead of posting a new one.
const Marker = "<!-- reviewloop:report -->"

// Project converts a ReviewState into a Report. Active findings sort by
// severity descending, then file path, then line start, then id; terminal
// findings collapse to one-line entries sorted the same way minus
// severity.
func Project(state *models.ReviewState) models.Report {
	rep := models.Report{
		Subject:     state.Subject,
		Active:      []models.Finding{},
		Resolved:    []models.ResolvedEntry{},
		Commits:     len(state.ReviewedCommits),
		LastUpdated: state.LastReviewAt,
	}

	for _, f := range state.Findings {
		switch f.Status {
		case models.StatusOpen:
			rep.Summary.Open++
			switch f.Severity {
			case models.SeverityError:
				rep.Summary.Errors++
			case models.SeverityWarning:
				rep.Summary.Warnings++
			case models.SeverityInfo:
				rep.Summary.Infos++
			}
			rep.Active = append(rep.Active, *f.Clone())
		case models.StatusResolved, models.StatusInvalidated, models.StatusDismissed:
			switch f.Status {
			case models.StatusResolved:
				rep.Summary.Resolved++
			case models.StatusInvalidated:
				rep.Summary.Invalidated++
			case models.StatusDismissed:
				rep.Summary.Dismissed++
			}
			rep.Resolved = append(rep.Resolved, models.ResolvedEntry{
				ID:         f.ID,
				FilePath:   f.FilePath,
				Lines:      f.Lines,
				Category:   f.Category,
				Status:     f.Status,
				ResolvedAt: f.ResolvedAt,
			})
		}
	}

	sort.Slice(rep.Active, func(i, j int) bool {
		a, b := rep.Active[i], rep.Active[j]
		if ra, rb := models.SeverityRank(a.Severity), models.SeverityRank(b.Severity); ra != rb {
			return ra > rb
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Lines.Start != b.Lines.Start {
			return a.Lines.Start < b.Lines.Start
		}
		return a.ID < b.ID
	})

	sort.Slice(rep.Resolved, func(i, j int) bool {
		a, b := rep.Resolved[i], rep.Resolved[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Lines.Start != b.Lines.Start {
			return a.Lines.Start < b.Lines.Start
		}
		return a.ID < b.ID
	})

	return rep
}

// Markdown renders the single persistent review comment. Output is a pure
// function of the report.
func Markdown(rep models.Report) string {
	var b strings.Builder

	b.WriteString(Marker)
	b.WriteString("\n## Review summary\n\n")
	fmt.Fprintf(&b, "**%d open** (%d error, %d warning, %d info) · %d resolved · %d invalidated · %d dismissed\n",
		rep.Summary.Open, rep.Summary.Errors, rep.Summary.Warnings, rep.Summary.Infos,
		rep.Summary.Resolved, rep.Summary.Invalidated, rep.Summary.Dismissed)

	if len(rep.Active) > 0 {
		b.WriteString("\n### Findings\n\n")
		for _, f := range rep.Active {
			fmt.Fprintf(&b, "- **%s** `%s:%d-%d` (%s, `%s`): %s\n",
				f.Severity, f.FilePath, f.Lines.Start, f.Lines.End, f.Category, f.ID, f.Message)
			if f.SuggestedFix != "" {
				fmt.Fprintf(&b, "  - Suggested fix: %s\n", f.SuggestedFix)
			}
		}
	}

	if len(rep.Resolved) > 0 {
		b.WriteString("\n<details><summary>Resolved findings</summary>\n\n")
		for _, r := range rep.Resolved {
			fmt.Fprintf(&b, "- `%s:%d-%d` (%s, `%s`): %s\n",
				r.FilePath, r.Lines.Start, r.Lines.End, r.Category, r.ID, r.Status)
		}
		b.WriteString("\n</details>\n")
	}

	if rep.LastUpdated != nil {
		fmt.Fprintf(&b, "\n_Last updated %s over %d reviewed commits._\n",
			rep.LastUpdated.UTC().Format("2006-01-02 15:04:05 UTC"), rep.Commits)
	}

	return b.String()
}

// YAML renders the report for machine consumption (status --output yaml).
func YAML(rep models.Report) (string, error) {
	out, err := yaml.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return string(out), nil
}
