// Package lifecycle owns the merge protocol: the single read-reconcile-
// write path through which persisted review state changes, plus the
// pause/resume state machine governing automatic triggers.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/viper"

	"github.com/reviewloop/reviewloop/internal/analysis"
	"github.com/reviewloop/reviewloop/internal/hosting"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/report"
	"github.com/reviewloop/reviewloop/internal/store"
	"github.com/reviewloop/reviewloop/internal/track"
)

// Config holds merge-affecting knobs. It is built once at startup and
// threaded in explicitly; the engine never reads ambient configuration.
type Config struct {
	// RetentionDays bounds how long terminal findings stay in the record.
	// Pruning happens at merge time only.
	RetentionDays int
	// LockTimeout bounds per-subject lock acquisition.
	LockTimeout time.Duration
}

// DefaultConfig returns the default lifecycle config, reading from viper
// when available.
func DefaultConfig() Config {
	retention := viper.GetInt("review.retention_days")
	if retention <= 0 {
		retention = 30
	}

	lockTimeout := viper.GetDuration("review.lock_timeout")
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Second
	}

	return Config{
		RetentionDays: retention,
		LockTimeout:   lockTimeout,
	}
}

// CycleResult summarizes one trigger evaluation: either a completed merge
// or a recorded skip (paused subject).
type CycleResult struct {
	RunID       string               `json:"run_id"`
	Subject     models.ReviewSubject `json:"subject"`
	HeadCommit  string               `json:"head_commit,omitempty"`
	Skipped     bool                 `json:"skipped"`
	SkipReason  string               `json:"skip_reason,omitempty"`
	StateReset  bool                 `json:"state_reset"`
	Opened      []string             `json:"opened,omitempty"`
	Refreshed   []string             `json:"refreshed,omitempty"`
	Resolved    []string             `json:"resolved,omitempty"`
	Invalidated []string             `json:"invalidated,omitempty"`
	Pruned      int                  `json:"pruned,omitempty"`
	Report      *models.Report       `json:"report,omitempty"`
}

// Controller drives all mutation of persisted review state.
type Controller struct {
	store    store.Store
	host     hosting.Host
	supplier analysis.Supplier
	locks    *subjectLocks
	cfg      Config

	now func() time.Time // overridable in tests
}

// NewController creates a lifecycle controller over the given
// collaborators.
func NewController(s store.Store, h hosting.Host, sup analysis.Supplier, cfg Config) *Controller {
	return &Controller{
		store:    s,
		host:     h,
		supplier: sup,
		locks:    newSubjectLocks(),
		cfg:      cfg,
		now:      time.Now,
	}
}

type cycleOpts struct {
	forced     bool // explicit command: merge even while paused
	clearPause bool // resume: drop the pause flag as part of the merge
}

// Review runs an explicit on-demand review cycle. It merges even while the
// subject is paused.
func (c *Controller) Review(ctx context.Context, subject models.ReviewSubject) (*CycleResult, error) {
	return c.runCycle(ctx, subject, cycleOpts{forced: true})
}

// HandlePush evaluates an automatic trigger (new commits pushed). While
// the subject is paused the merge is skipped; hunks keep accumulating
// against the last reviewed commit, so the next merge covers them all. An
// elapsed timed pause auto-resumes.
func (c *Controller) HandlePush(ctx context.Context, subject models.ReviewSubject) (*CycleResult, error) {
	return c.runCycle(ctx, subject, cycleOpts{})
}

// Pause suspends automatic triggers for the subject. A zero duration
// pauses indefinitely; otherwise triggers resume once d has elapsed.
func (c *Controller) Pause(ctx context.Context, subject models.ReviewSubject, d time.Duration) error {
	release, err := c.locks.acquire(ctx, subject.Key(), c.cfg.LockTimeout)
	if err != nil {
		return err
	}
	defer release()

	state, _, err := c.loadOrInit(ctx, subject)
	if err != nil {
		return err
	}

	state.Paused = true
	state.PauseUntil = nil
	if d > 0 {
		until := c.now().UTC().Add(d)
		state.PauseUntil = &until
	}

	return c.store.Save(ctx, state)
}

// Resume re-enables automatic triggers and forces an immediate merge over
// everything accumulated since the last review.
func (c *Controller) Resume(ctx context.Context, subject models.ReviewSubject) (*CycleResult, error) {
	return c.runCycle(ctx, subject, cycleOpts{forced: true, clearPause: true})
}

// Dismiss marks a finding dismissed by a human. Dismissal is sticky: the
// finding is never auto-reopened by re-detection. The finding id may be a
// unique prefix.
func (c *Controller) Dismiss(ctx context.Context, subject models.ReviewSubject, findingID string) (*models.Finding, error) {
	release, err := c.locks.acquire(ctx, subject.Key(), c.cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	state, err := c.store.Load(ctx, subject)
	if err != nil {
		return nil, err
	}

	f, err := findByPrefix(state, findingID)
	if err != nil {
		return nil, err
	}
	if f.Status == models.StatusDismissed {
		return f, nil
	}

	f.MarkDismissed(c.now().UTC())
	if err := c.store.Save(ctx, state); err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes a subject's record entirely. Only an explicit external
// request reaches here; records never expire on their own.
func (c *Controller) Delete(ctx context.Context, subject models.ReviewSubject) error {
	release, err := c.locks.acquire(ctx, subject.Key(), c.cfg.LockTimeout)
	if err != nil {
		return err
	}
	defer release()

	return c.store.Delete(ctx, subject)
}

// runCycle is the merge protocol. All external input is fully resolved
// before the exclusion scope is entered, keeping lock hold time down to
// the reconcile and the two store calls. Any failure before Save leaves
// the persisted state unchanged.
func (c *Controller) runCycle(ctx context.Context, subject models.ReviewSubject, opts cycleOpts) (*CycleResult, error) {
	res := &CycleResult{RunID: newRunID(), Subject: subject}

	// Cheap pre-check so a paused subject skips before paying for an
	// analysis pass. Authoritative re-check happens under the lock.
	if !opts.forced {
		if skip, reason := c.pausePrecheck(ctx, subject); skip {
			res.Skipped = true
			res.SkipReason = reason
			return res, nil
		}
	}

	// Resolve all inputs: changed hunks since the last reviewed commit,
	// current head, and the analysis pass over them.
	peek, err := c.store.Load(ctx, subject)
	if err != nil && !store.IsRecoverableLoad(err) {
		return nil, err
	}
	since := ""
	if peek != nil {
		since = peek.LastReviewedCommit()
	}

	changes, head, diff, err := c.host.ChangesSince(ctx, subject, since)
	if err != nil {
		return nil, fmt.Errorf("fetch changes for %s: %w", subject, err)
	}
	res.HeadCommit = head

	candidates, err := c.supplier.Analyze(ctx, analysis.Request{
		Subject:    subject,
		HeadCommit: head,
		Diff:       diff,
		Files:      changes.Files(),
	})
	if err != nil {
		return nil, fmt.Errorf("analysis for %s: %w", subject, err)
	}

	// Merge protocol proper: lock, load, reconcile, save.
	release, err := c.locks.acquire(ctx, subject.Key(), c.cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	state, reset, err := c.loadOrInit(ctx, subject)
	if err != nil {
		return nil, err
	}
	res.StateReset = reset

	now := c.now().UTC()

	if state.Paused {
		switch {
		case opts.clearPause, state.PauseElapsed(now):
			state.Paused = false
			state.PauseUntil = nil
		case !opts.forced:
			res.Skipped = true
			res.SkipReason = "subject is paused"
			return res, nil
		}
	}

	tr := track.Reconcile(state.Findings, changes, candidates, head, now)
	state.Findings = tr.Findings
	state.AddReviewedCommit(head)
	res.Pruned = pruneExpired(state, now, c.cfg.RetentionDays)
	state.LastReviewAt = &now

	if err := c.store.Save(ctx, state); err != nil {
		return nil, err
	}

	res.Opened = tr.Opened
	res.Refreshed = tr.Refreshed
	res.Resolved = tr.Resolved
	res.Invalidated = tr.Invalidated
	rep := report.Project(state)
	res.Report = &rep
	return res, nil
}

// pausePrecheck peeks at persisted state without the lock. Errors and
// missing records mean "do not skip"; the merge path handles them.
func (c *Controller) pausePrecheck(ctx context.Context, subject models.ReviewSubject) (bool, string) {
	state, err := c.store.Load(ctx, subject)
	if err != nil {
		return false, ""
	}
	if state.Paused && !state.PauseElapsed(c.now().UTC()) {
		return true, "subject is paused"
	}
	return false, ""
}

// loadOrInit loads the subject's state, synthesizing a fresh one when the
// record is missing or corrupt. The bool reports a corruption reset, which
// callers must surface.
func (c *Controller) loadOrInit(ctx context.Context, subject models.ReviewSubject) (*models.ReviewState, bool, error) {
	state, err := c.store.Load(ctx, subject)
	switch {
	case err == nil:
		return state, false, nil
	case errors.Is(err, store.ErrNotFound):
		return models.NewReviewState(subject), false, nil
	case errors.Is(err, store.ErrCorruptRecord):
		// The store already archived the bad bytes.
		return models.NewReviewState(subject), true, nil
	default:
		return nil, false, err
	}
}

// pruneExpired removes terminal findings whose resolution predates the
// retention horizon. Open findings are never pruned.
func pruneExpired(state *models.ReviewState, now time.Time, retentionDays int) int {
	if retentionDays <= 0 {
		return 0
	}
	horizon := now.AddDate(0, 0, -retentionDays)
	pruned := 0
	for id, f := range state.Findings {
		if f.Status.Terminal() && f.ResolvedAt != nil && f.ResolvedAt.Before(horizon) {
			delete(state.Findings, id)
			pruned++
		}
	}
	return pruned
}

// findByPrefix resolves a finding by full id or unique prefix.
func findByPrefix(state *models.ReviewState, id string) (*models.Finding, error) {
	if f, ok := state.Findings[id]; ok {
		return f, nil
	}

	var matches []*models.Finding
	for fid, f := range state.Findings {
		if strings.HasPrefix(fid, id) {
			matches = append(matches, f)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("finding not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous finding id %s: matches %d findings", id, len(matches))
	}
}

// newRunID generates a ULID for one cycle.
func newRunID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}
