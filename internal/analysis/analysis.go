// Package analysis defines the interface to the layer that turns a diff
// into candidate findings. Implementations live elsewhere (internal/llm);
// the engine only consumes candidates and never mutates state on supplier
// failure.
package analysis

import (
	"context"
	"errors"

	"github.com/reviewloop/reviewloop/internal/models"
)

// ErrUnavailable indicates the analysis layer could not produce candidates
// this cycle. Recoverable: the cycle aborts with state untouched and the
// caller may retry.
var ErrUnavailable = errors.New("analysis unavailable")

// Candidate is one raw finding emitted by an analysis pass, before
// reconciliation against prior state.
type Candidate struct {
	FilePath     string           `json:"file_path"`
	Lines        models.LineRange `json:"line_range"`
	Category     string           `json:"category"`
	Severity     models.Severity  `json:"severity"`
	Message      string           `json:"message"`
	SuggestedFix string           `json:"suggested_fix,omitempty"`
	// Snippet is the code excerpt around the candidate, used as the
	// stable anchor for identity hashing.
	Snippet string `json:"snippet,omitempty"`
}

// ID derives the candidate's stable finding id.
func (c Candidate) ID() string {
	return models.ComputeFindingID(c.FilePath, c.Category, models.AnchorHash(c.Snippet), c.Lines)
}

// Fingerprint hashes the candidate's semantic payload.
func (c Candidate) Fingerprint() string {
	return models.ContentFingerprint(c.Message, c.SuggestedFix, c.Severity)
}

// Request describes one analysis pass over the changes to a subject.
type Request struct {
	Subject    models.ReviewSubject
	HeadCommit string
	Diff       string
	Files      []string
}

// Supplier produces candidate findings for a change-set.
type Supplier interface {
	Analyze(ctx context.Context, req Request) ([]Candidate, error)
}
