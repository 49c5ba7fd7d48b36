package hosting

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/reviewloop/reviewloop/internal/models"
)

// GitHubHost implements Host using the gh CLI, which handles auth and
// pagination.
type GitHubHost struct{}

// NewGitHubHost returns a gh-backed Host.
func NewGitHubHost() *GitHubHost {
	return &GitHubHost{}
}

func ghCmd(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "gh", args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("gh %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("gh %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// compareFile is one entry of the compare API's files array.
type compareFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Patch    string `json:"patch"`
}

// ChangesSince fetches the diff between sinceCommit and the current PR
// head. With no prior commit the whole PR diff is used.
func (h *GitHubHost) ChangesSince(ctx context.Context, subject models.ReviewSubject, sinceCommit string) (models.ChangeSet, string, string, error) {
	head, err := h.headCommit(ctx, subject)
	if err != nil {
		return models.ChangeSet{}, "", "", err
	}

	if sinceCommit == "" || sinceCommit == head {
		diff, err := ghCmd(ctx, "pr", "diff", fmt.Sprintf("%d", subject.Number), "--repo", subject.Repository)
		if err != nil {
			return models.ChangeSet{}, "", "", err
		}
		if sinceCommit == head {
			// Nothing new since the last review.
			return models.ChangeSet{}, head, diff, nil
		}
		return ParseUnifiedDiff(diff), head, diff, nil
	}

	out, err := ghCmd(ctx, "api",
		fmt.Sprintf("repos/%s/compare/%s...%s", subject.Repository, sinceCommit, head),
		"--jq", `[.files[] | {filename, status, patch}]`,
	)
	if err != nil {
		return models.ChangeSet{}, "", "", err
	}

	var files []compareFile
	if err := json.Unmarshal([]byte(out), &files); err != nil {
		return models.ChangeSet{}, "", "", fmt.Errorf("parse compare response: %w", err)
	}

	var cs models.ChangeSet
	var diff strings.Builder
	for _, f := range files {
		if f.Status == "removed" {
			cs.DeletedFiles = append(cs.DeletedFiles, f.Filename)
			continue
		}
		// Reassemble a unified diff for the analysis layer; the compare
		// API strips the ---/+++ headers from per-file patches.
		fmt.Fprintf(&diff, "--- a/%s\n+++ b/%s\n%s\n", f.Filename, f.Filename, f.Patch)
		for _, line := range strings.Split(f.Patch, "\n") {
			if h, ok := parseHunkHeader(line); ok {
				cs.Hunks = append(cs.Hunks, models.Hunk{FilePath: f.Filename, Lines: h})
			}
		}
	}

	return cs, head, diff.String(), nil
}

// headCommit resolves the subject's current head ref.
func (h *GitHubHost) headCommit(ctx context.Context, subject models.ReviewSubject) (string, error) {
	out, err := ghCmd(ctx, "pr", "view", fmt.Sprintf("%d", subject.Number),
		"--repo", subject.Repository, "--json", "headRefOid", "--jq", ".headRefOid")
	if err != nil {
		return "", err
	}
	return out, nil
}

// issueComment is the subset of the comments API the publisher needs.
type issueComment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}

// PublishReport creates or updates the single review comment, located by
// its marker prefix. An unchanged body is left alone.
func (h *GitHubHost) PublishReport(ctx context.Context, subject models.ReviewSubject, body string) error {
	marker, _, _ := strings.Cut(body, "\n")

	out, err := ghCmd(ctx, "api", "--paginate",
		fmt.Sprintf("repos/%s/issues/%d/comments", subject.Repository, subject.Number),
		"--jq", `[.[] | {id, body}]`,
	)
	if err != nil {
		return err
	}

	var comments []issueComment
	// --paginate emits one JSON array per page.
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var page []issueComment
		if err := dec.Decode(&page); err != nil {
			return fmt.Errorf("parse comments: %w", err)
		}
		comments = append(comments, page...)
	}

	for _, c := range comments {
		if !strings.HasPrefix(c.Body, marker) {
			continue
		}
		if c.Body == body {
			return nil // no visible change
		}
		_, err := ghCmd(ctx, "api", "--method", "PATCH",
			fmt.Sprintf("repos/%s/issues/comments/%d", subject.Repository, c.ID),
			"-f", "body="+body)
		return err
	}

	_, err = ghCmd(ctx, "api", "--method", "POST",
		fmt.Sprintf("repos/%s/issues/%d/comments", subject.Repository, subject.Number),
		"-f", "body="+body)
	return err
}

var _ Host = (*GitHubHost)(nil)
