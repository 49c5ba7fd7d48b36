package lifecycle

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/reviewloop/reviewloop/internal/analysis"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/report"
	"github.com/reviewloop/reviewloop/internal/store"
)

type fakeHost struct {
	changes models.ChangeSet
	head    string
	diff    string
	err     error

	published []string
}

func (h *fakeHost) ChangesSince(ctx context.Context, subject models.ReviewSubject, sinceCommit string) (models.ChangeSet, string, string, error) {
	return h.changes, h.head, h.diff, h.err
}

func (h *fakeHost) PublishReport(ctx context.Context, subject models.ReviewSubject, body string) error {
	h.published = append(h.published, body)
	return nil
}

type fakeSupplier struct {
	candidates []analysis.Candidate
	err        error
	calls      int
}

func (s *fakeSupplier) Analyze(ctx context.Context, req analysis.Request) ([]analysis.Candidate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

var testClock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	ctrl     *Controller
	store    *store.SQLiteStore
	dbPath   string
	host     *fakeHost
	supplier *fakeSupplier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	host := &fakeHost{head: "c1", diff: "+ code"}
	supplier := &fakeSupplier{}

	ctrl := NewController(s, host, supplier, Config{RetentionDays: 30, LockTimeout: 5 * time.Second})
	ctrl.now = func() time.Time { return testClock }

	return &testEnv{ctrl: ctrl, store: s, dbPath: dbPath, host: host, supplier: supplier}
}

func testSubject() models.ReviewSubject {
	return models.ReviewSubject{Provider: "github", Repository: "acme/widgets", Number: 42}
}

func oneCandidate() analysis.Candidate {
	return analysis.Candidate{
		FilePath: "file.py",
		Lines:    models.LineRange{Start: 10, End: 12},
		Category: "bug",
		Severity: models.SeverityWarning,
		Message:  "possible nil deref",
		Snippet:  "x.foo()",
	}
}

func TestReview_FirstCycleOpensFinding(t *testing.T) {
	env := newTestEnv(t)
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()

	res, err := env.ctrl.Review(ctx, testSubject())
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.False(t, res.StateReset)
	assert.Len(t, res.Opened, 1)
	require.NotNil(t, res.Report)
	assert.Equal(t, 1, res.Report.Summary.Open)
	assert.Len(t, res.Report.Active, 1)

	state, err := env.store.Load(ctx, testSubject())
	require.NoError(t, err)
	require.Len(t, state.Findings, 1)
	assert.Equal(t, []string{"c1"}, state.ReviewedCommits)
	require.NotNil(t, state.LastReviewAt)
	assert.True(t, state.LastReviewAt.Equal(testClock))
}

func TestReview_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()

	first, err := env.ctrl.Review(ctx, testSubject())
	require.NoError(t, err)
	stateA, err := env.store.Load(ctx, testSubject())
	require.NoError(t, err)

	second, err := env.ctrl.Review(ctx, testSubject())
	require.NoError(t, err)
	stateB, err := env.store.Load(ctx, testSubject())
	require.NoError(t, err)

	assert.Empty(t, second.Opened)
	assert.Equal(t, stateA.Findings, stateB.Findings)
	assert.Equal(t, stateA.ReviewedCommits, stateB.ReviewedCommits)
	assert.Equal(t, report.Markdown(*first.Report), report.Markdown(*second.Report),
		"identical state must render an identical report")
}

func TestReview_ResolvesTouchedFinding(t *testing.T) {
	env := newTestEnv(t)
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()

	_, err := env.ctrl.Review(ctx, testSubject())
	require.NoError(t, err)

	// Next cycle: the finding's region was touched and the model no
	// longer flags it.
	env.host.head = "c2"
	env.host.changes = models.ChangeSet{Hunks: []models.Hunk{
		{FilePath: "file.py", Lines: models.LineRange{Start: 1, End: 20}},
	}}
	env.supplier.candidates = nil

	res, err := env.ctrl.Review(ctx, testSubject())
	require.NoError(t, err)
	assert.Len(t, res.Resolved, 1)

	state, err := env.store.Load(ctx, testSubject())
	require.NoError(t, err)
	for _, f := range state.Findings {
		assert.Equal(t, models.StatusResolved, f.Status)
		assert.NotNil(t, f.ResolvedAt, "terminal transition must set resolved_at")
	}
	assert.Equal(t, []string{"c1", "c2"}, state.ReviewedCommits)
}

func TestReview_UntouchedFindingStaysOpen(t *testing.T) {
	env := newTestEnv(t)
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()

	_, err := env.ctrl.Review(ctx, testSubject())
	require.NoError(t, err)

	env.host.head = "c2"
	env.host.changes = models.ChangeSet{Hunks: []models.Hunk{
		{FilePath: "other.py", Lines: models.LineRange{Start: 1, End: 50}},
	}}
	env.supplier.candidates = nil

	res, err := env.ctrl.Review(ctx, testSubject())
	require.NoError(t, err)
	assert.Empty(t, res.Resolved)

	state, err := env.store.Load(ctx, testSubject())
	require.NoError(t, err)
	for _, f := range state.Findings {
		assert.Equal(t, models.StatusOpen, f.Status)
	}
}

func TestHandlePush_PauseAccumulates(t *testing.T) {
	env := newTestEnv(t)
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()
	subject := testSubject()

	_, err := env.ctrl.Review(ctx, subject)
	require.NoError(t, err)
	callsBefore := env.supplier.calls

	require.NoError(t, env.ctrl.Pause(ctx, subject, 24*time.Hour))

	// Three pushes while paused: no merges, commits static.
	for i, head := range []string{"c2", "c3", "c4"} {
		env.host.head = head
		res, err := env.ctrl.HandlePush(ctx, subject)
		require.NoError(t, err, "push %d", i)
		assert.True(t, res.Skipped)
	}
	assert.Equal(t, callsBefore, env.supplier.calls, "no analysis while paused")

	state, err := env.store.Load(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, state.ReviewedCommits)
	assert.True(t, state.Paused)

	// After the pause elapses, one merge covers everything accumulated.
	env.ctrl.now = func() time.Time { return testClock.Add(25 * time.Hour) }
	env.host.head = "c4"
	env.host.changes = models.ChangeSet{Hunks: []models.Hunk{
		{FilePath: "a.py", Lines: models.LineRange{Start: 1, End: 5}},
		{FilePath: "b.py", Lines: models.LineRange{Start: 3, End: 9}},
	}}

	res, err := env.ctrl.HandlePush(ctx, subject)
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	state, err = env.store.Load(ctx, subject)
	require.NoError(t, err)
	assert.False(t, state.Paused)
	assert.Nil(t, state.PauseUntil)
	assert.Equal(t, []string{"c1", "c4"}, state.ReviewedCommits)
}

func TestReview_RunsWhilePaused(t *testing.T) {
	env := newTestEnv(t)
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()
	subject := testSubject()

	require.NoError(t, env.ctrl.Pause(ctx, subject, 0))

	res, err := env.ctrl.Review(ctx, subject)
	require.NoError(t, err)
	assert.False(t, res.Skipped, "explicit review merges even while paused")

	state, err := env.store.Load(ctx, subject)
	require.NoError(t, err)
	assert.True(t, state.Paused, "explicit review does not lift an indefinite pause")
}

func TestResume_ClearsPauseAndMerges(t *testing.T) {
	env := newTestEnv(t)
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()
	subject := testSubject()

	require.NoError(t, env.ctrl.Pause(ctx, subject, 0))

	res, err := env.ctrl.Resume(ctx, subject)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Len(t, res.Opened, 1)

	state, err := env.store.Load(ctx, subject)
	require.NoError(t, err)
	assert.False(t, state.Paused)
}

func TestReview_CorruptStateResets(t *testing.T) {
	env := newTestEnv(t)
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()
	subject := testSubject()

	// Persist a good record, then corrupt its payload in place.
	_, err := env.ctrl.Review(ctx, subject)
	require.NoError(t, err)
	corruptPayload(t, env.dbPath, subject)

	res, err := env.ctrl.Review(ctx, subject)
	require.NoError(t, err, "corruption must not fail the cycle")
	assert.True(t, res.StateReset, "the cycle must flag the reset")
	assert.Len(t, res.Opened, 1, "fresh state treats candidates as new")

	// The corrupt bytes survive for inspection.
	records, err := env.store.CorruptRecords(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, subject.Key(), records[0].SubjectKey)

	// And the rewritten state is healthy again.
	state, err := env.store.Load(ctx, subject)
	require.NoError(t, err)
	assert.Len(t, state.Findings, 1)
}

func TestReview_AnalysisFailureLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()
	subject := testSubject()

	_, err := env.ctrl.Review(ctx, subject)
	require.NoError(t, err)
	before, err := env.store.Load(ctx, subject)
	require.NoError(t, err)

	env.supplier.err = analysis.ErrUnavailable
	_, err = env.ctrl.Review(ctx, subject)
	require.ErrorIs(t, err, analysis.ErrUnavailable)

	after, err := env.store.Load(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReview_LockTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.ctrl.cfg.LockTimeout = 50 * time.Millisecond
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()
	subject := testSubject()

	// Hold the subject's lock so the cycle cannot enter the merge.
	release, err := env.ctrl.locks.acquire(ctx, subject.Key(), time.Second)
	require.NoError(t, err)
	defer release()

	_, err = env.ctrl.Review(ctx, subject)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestDismiss_StickyAcrossCycles(t *testing.T) {
	env := newTestEnv(t)
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()
	subject := testSubject()

	_, err := env.ctrl.Review(ctx, subject)
	require.NoError(t, err)

	state, err := env.store.Load(ctx, subject)
	require.NoError(t, err)
	var findingID string
	for id := range state.Findings {
		findingID = id
	}

	// Dismiss by id prefix.
	f, err := env.ctrl.Dismiss(ctx, subject, findingID[:6])
	require.NoError(t, err)
	assert.Equal(t, models.StatusDismissed, f.Status)

	// Re-detection must not reopen it.
	_, err = env.ctrl.Review(ctx, subject)
	require.NoError(t, err)

	state, err = env.store.Load(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDismissed, state.Findings[findingID].Status)
}

func TestDismiss_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()
	subject := testSubject()

	_, err := env.ctrl.Review(ctx, subject)
	require.NoError(t, err)

	_, err = env.ctrl.Dismiss(ctx, subject, "zzzzzz")
	assert.Error(t, err)
}

func TestReview_PrunesExpiredTerminalFindings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	subject := testSubject()

	// Seed a state containing an old resolved finding directly.
	state := models.NewReviewState(subject)
	old := testClock.AddDate(0, 0, -60)
	state.Findings["stale"] = &models.Finding{
		ID:         "stale",
		FilePath:   "a.py",
		Status:     models.StatusResolved,
		ResolvedAt: &old,
	}
	state.Findings["kept"] = &models.Finding{
		ID:       "kept",
		FilePath: "b.py",
		Status:   models.StatusOpen,
	}
	require.NoError(t, env.store.Save(ctx, state))

	res, err := env.ctrl.Review(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pruned)

	got, err := env.store.Load(ctx, subject)
	require.NoError(t, err)
	assert.NotContains(t, got.Findings, "stale")
	assert.Contains(t, got.Findings, "kept", "open findings are never pruned")
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	env.supplier.candidates = []analysis.Candidate{oneCandidate()}
	ctx := context.Background()
	subject := testSubject()

	_, err := env.ctrl.Review(ctx, subject)
	require.NoError(t, err)

	require.NoError(t, env.ctrl.Delete(ctx, subject))

	_, err = env.store.Load(ctx, subject)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// corruptPayload overwrites the persisted payload with junk bytes through
// a second connection to the same database file.
func corruptPayload(t *testing.T, dbPath string, subject models.ReviewSubject) {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`UPDATE review_states SET payload = ? WHERE subject_key = ?`,
		[]byte("{not json"), subject.Key())
	require.NoError(t, err)
}
