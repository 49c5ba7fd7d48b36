// Package track reconciles prior findings against a new analysis pass.
// Reconcile is pure: it never mutates its inputs and never touches
// storage, so every lifecycle decision stays testable in isolation.
package track

import (
	"sort"
	"time"

	"github.com/reviewloop/reviewloop/internal/analysis"
	"github.com/reviewloop/reviewloop/internal/models"
)

// Result is the outcome of one reconciliation cycle: the successor
// findings map plus the ids that changed, for the cycle summary.
type Result struct {
	Findings    map[string]*models.Finding
	Opened      []string
	Refreshed   []string
	Resolved    []string
	Invalidated []string
}

// Reconcile merges a batch of candidates into the prior findings under the
// rules:
//
//  1. A candidate matching an existing finding (by id, or by the
//     near-match pass) refreshes it and keeps it open, unless it was
//     dismissed, which is sticky. An unmatched candidate opens a new
//     finding.
//  2. A prior open finding that was not re-emitted and whose location
//     falls inside a changed hunk is resolved: the code was touched and
//     the issue is gone.
//  3. A prior open finding outside every changed hunk stays open; silence
//     over untouched code proves nothing.
//  4. A prior open finding whose file was deleted is invalidated: the
//     location vanished rather than the issue being fixed.
func Reconcile(prev map[string]*models.Finding, changes models.ChangeSet, candidates []analysis.Candidate, commit string, now time.Time) Result {
	next := make(map[string]*models.Finding, len(prev))
	for id, f := range prev {
		next[id] = f.Clone()
	}

	res := Result{Findings: next}
	seen := make(map[string]bool)

	for _, c := range candidates {
		id := c.ID()
		f, ok := next[id]
		if !ok {
			if match := nearMatch(next, c); match != nil {
				// Anchor drift: the candidate hashes differently but is
				// almost certainly the same issue. Fold it onto the
				// existing id instead of opening a duplicate.
				f, id = match, match.ID
				ok = true
			}
		}

		if !ok {
			nf := &models.Finding{
				ID:                 id,
				FilePath:           c.FilePath,
				Lines:              c.Lines,
				Category:           c.Category,
				Severity:           c.Severity,
				Message:            c.Message,
				SuggestedFix:       c.SuggestedFix,
				Status:             models.StatusOpen,
				ContentFingerprint: c.Fingerprint(),
				FirstSeenCommit:    commit,
				LastSeenCommit:     commit,
				CreatedAt:          now,
			}
			next[id] = nf
			res.Opened = append(res.Opened, id)
			seen[id] = true
			continue
		}

		if seen[id] {
			continue // duplicate candidate within one batch
		}
		seen[id] = true

		f.LastSeenCommit = commit
		f.Lines = c.Lines
		if fp := c.Fingerprint(); fp != f.ContentFingerprint {
			f.Message = c.Message
			f.SuggestedFix = c.SuggestedFix
			f.Severity = c.Severity
			f.ContentFingerprint = fp
		}
		if f.Status != models.StatusDismissed {
			if f.Status != models.StatusOpen {
				f.Status = models.StatusOpen
				f.ResolvedAt = nil
			}
			res.Refreshed = append(res.Refreshed, id)
		}
	}

	for id, f := range next {
		if f.Status != models.StatusOpen || seen[id] {
			continue
		}
		switch {
		case changes.FileDeleted(f.FilePath):
			f.MarkInvalidated(now)
			res.Invalidated = append(res.Invalidated, id)
		case changes.Touches(f.FilePath, f.Lines):
			f.MarkResolved(now)
			res.Resolved = append(res.Resolved, id)
		}
		// Outside every hunk: stays open. The pass may simply not have
		// re-examined that region.
	}

	sort.Strings(res.Opened)
	sort.Strings(res.Refreshed)
	sort.Strings(res.Resolved)
	sort.Strings(res.Invalidated)
	return res
}

// nearMatch looks for a prior finding that is highly likely the same issue
// as the candidate despite a drifted anchor hash: same file, same
// normalized category, overlapping line range. Dismissed findings are
// eligible so that dismissal stays sticky under drift; other terminal
// findings are not, re-flagging them opens a fresh finding.
func nearMatch(findings map[string]*models.Finding, c analysis.Candidate) *models.Finding {
	category := models.NormalizeCategory(c.Category)

	var best *models.Finding
	for _, f := range findings {
		if f.Status != models.StatusOpen && f.Status != models.StatusDismissed {
			continue
		}
		if f.FilePath != c.FilePath || models.NormalizeCategory(f.Category) != category {
			continue
		}
		if !f.Lines.Overlaps(c.Lines) {
			continue
		}
		// Deterministic tie-break on id
		if best == nil || f.ID < best.ID {
			best = f
		}
	}
	return best
}
